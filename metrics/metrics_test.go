package metrics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/hostfuncs"
)

func TestNewCollector_DefaultNamespace(t *testing.T) {
	c := NewCollector("")
	require.NotNil(t, c.Registry())

	c.RecordTick(time.Millisecond, 2)
	families, err := c.Registry().Gather()
	require.NoError(t, err)

	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "gers_scheduler_ticks_total")
}

func TestCollector_Scheduler(t *testing.T) {
	c := NewCollector("test")

	c.RecordTick(2*time.Millisecond, 3)
	c.RecordTick(time.Millisecond, 2)
	c.RecordCall("a", OutcomeOK)
	c.RecordCall("b", OutcomeTrap)
	c.RecordCall("b", OutcomeAbort)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.ticks))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.liveModules))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.calls.WithLabelValues("a", OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.faultedTotal))
}

func TestCollector_LoaderAndBus(t *testing.T) {
	c := NewCollector("test")

	c.RecordLoad("ok")
	c.RecordLoad("MissingMemoryExport")
	c.RecordLoad("ok")
	c.RecordPublish(5)
	c.RecordPending("a", 4)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.loads.WithLabelValues("ok")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.busPublished))
	assert.Equal(t, float64(4), testutil.ToFloat64(c.busPending.WithLabelValues("a")))

	c.ForgetConsumer("a")
	assert.Equal(t, 0, testutil.CollectAndCount(c.busPending))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector

	// Should not panic
	c.RecordLoad("ok")
	c.RecordTick(time.Millisecond, 1)
	c.RecordCall("a", OutcomeOK)
	c.RecordCapability("log_info", nil)
	c.RecordPublish(1)
	c.RecordPending("a", 1)
	c.ForgetConsumer("a")
	assert.Nil(t, c.Registry())
}

func TestCapabilityMiddleware(t *testing.T) {
	c := NewCollector("test")

	table, err := hostfuncs.NewTable(
		hostfuncs.WithMiddleware(c.CapabilityMiddleware()),
		hostfuncs.WithBinding(hostfuncs.Binding{Name: "ok", Handler: func(context.Context, *hostfuncs.Call, []uint64) error { return nil }}),
		hostfuncs.WithBinding(hostfuncs.Binding{Name: "fail", Handler: func(context.Context, *hostfuncs.Call, []uint64) error { return fmt.Errorf("nope") }}),
	)
	require.NoError(t, err)

	call := &hostfuncs.Call{Grants: entities.NewGrantSet("ok", "fail"), Outbox: &hostfuncs.Outbox{}}
	require.NoError(t, table.Invoke(context.Background(), call, "ok", nil))
	require.NoError(t, table.Invoke(context.Background(), call, "ok", nil))
	require.Error(t, table.Invoke(context.Background(), call, "fail", nil))

	assert.Equal(t, float64(2), testutil.ToFloat64(c.capabilityCalls.WithLabelValues("ok", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.capabilityCalls.WithLabelValues("fail", "error")))
}

func TestHandler(t *testing.T) {
	c := NewCollector("")
	c.RecordPublish(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gers_bus_events_total 3")

	var nilCollector *Collector
	rec = httptest.NewRecorder()
	nilCollector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
