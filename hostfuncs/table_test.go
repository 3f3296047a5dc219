package hostfuncs

import (
	"context"
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gers-dev/gers-host/abi"
	"github.com/gers-dev/gers-host/domain/entities"
	"github.com/gers-dev/gers-host/domain/errors"
)

func nopHandler(context.Context, *Call, []uint64) error { return nil }

func TestNewTable_Empty(t *testing.T) {
	table, err := NewTable()
	require.NoError(t, err)
	assert.Empty(t, table.Names())
	assert.Equal(t, abi.Namespace, table.Namespace())
}

func TestNewTable_DuplicateBinding(t *testing.T) {
	b := Binding{Name: "ping", Signature: abi.Sig(nil), Handler: nopHandler}

	_, err := NewTable(WithBinding(b), WithBinding(b))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate capability name")
}

func TestNewTable_InvalidBinding(t *testing.T) {
	_, err := NewTable(WithBinding(Binding{Handler: nopHandler}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be empty")

	_, err = NewTable(WithBinding(Binding{Name: "ping"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")

	_, err = NewTable(WithNamespace(""))
	require.Error(t, err)
}

func TestDefaultTable_Names(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	assert.Equal(t, []string{
		abi.CapEmitEvent,
		abi.CapGetDeltaTime,
		abi.CapGetTick,
		abi.CapLogError,
		abi.CapLogInfo,
		abi.CapLogWarn,
	}, table.Names())

	b, ok := table.Lookup(abi.CapLogInfo)
	require.True(t, ok)
	assert.True(t, b.Signature.Equal(abi.LogSignature))

	// Names returns a copy.
	names := table.Names()
	names[0] = "mutated"
	assert.Equal(t, abi.CapEmitEvent, table.Names()[0])
}

func TestTable_Invoke_Grants(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	call := &Call{ModuleID: "m", Grants: entities.NewGrantSet(abi.CapGetTick), Outbox: &Outbox{}, Tick: 9}

	t.Run("granted", func(t *testing.T) {
		stack := make([]uint64, 1)
		require.NoError(t, table.Invoke(context.Background(), call, abi.CapGetTick, stack))
		assert.Equal(t, uint64(9), stack[0])
	})

	t.Run("not granted", func(t *testing.T) {
		err := table.Invoke(context.Background(), call, abi.CapGetDeltaTime, make([]uint64, 1))
		var capErr *errors.CapabilityError
		require.True(t, stdErrors.As(err, &capErr))
		assert.Equal(t, "m", capErr.ModuleID)
		assert.Equal(t, abi.CapGetDeltaTime, capErr.Name)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("unknown", func(t *testing.T) {
		err := table.Invoke(context.Background(), call, "teleport", nil)
		assert.True(t, errors.IsFatal(err))
	})

	t.Run("no call", func(t *testing.T) {
		err := table.Invoke(context.Background(), nil, abi.CapGetTick, make([]uint64, 1))
		assert.True(t, errors.IsFatal(err))
	})
}

func TestTable_Invoke_WrapsHandlerErrors(t *testing.T) {
	table, err := NewTable(WithBinding(Binding{
		Name: "fail",
		Handler: func(context.Context, *Call, []uint64) error {
			return fmt.Errorf("boom")
		},
	}))
	require.NoError(t, err)

	call := &Call{ModuleID: "m", Grants: entities.NewGrantSet("fail"), Outbox: &Outbox{}}
	err = table.Invoke(context.Background(), call, "fail", nil)

	var abort *errors.AbortError
	require.True(t, stdErrors.As(err, &abort))
	assert.Equal(t, "fail", abort.Capability)
	assert.False(t, errors.IsFatal(err))
}

func TestMiddlewareOrder_FIFO(t *testing.T) {
	var order []string
	mw := func(label string) Middleware {
		return func(next Handler) Handler {
			return func(ctx context.Context, call *Call, stack []uint64) error {
				order = append(order, label+"-before:"+FunctionName(ctx))
				err := next(ctx, call, stack)
				order = append(order, label+"-after")
				return err
			}
		}
	}

	table, err := NewTable(
		WithMiddleware(mw("mw1"), mw("mw2")),
		WithBinding(Binding{Name: "ping", Handler: func(context.Context, *Call, []uint64) error {
			order = append(order, "handler")
			return nil
		}}),
	)
	require.NoError(t, err)

	call := &Call{Grants: entities.NewGrantSet("ping"), Outbox: &Outbox{}}
	require.NoError(t, table.Invoke(context.Background(), call, "ping", nil))

	assert.Equal(t, []string{"mw1-before:ping", "mw2-before:ping", "handler", "mw2-after", "mw1-after"}, order)
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	table, err := NewTable(
		WithMiddleware(PanicRecoveryMiddleware()),
		WithBinding(Binding{Name: "explode", Handler: func(context.Context, *Call, []uint64) error {
			panic("test panic")
		}}),
	)
	require.NoError(t, err)

	call := &Call{Grants: entities.NewGrantSet("explode"), Outbox: &Outbox{}}
	err = table.Invoke(context.Background(), call, "explode", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test panic")
	assert.Contains(t, err.Error(), "explode")
	assert.True(t, errors.IsAbort(err))
}

func TestCallContext(t *testing.T) {
	_, ok := CallFrom(context.Background())
	assert.False(t, ok)

	call := &Call{ModuleID: "m"}
	got, ok := CallFrom(WithCall(context.Background(), call))
	require.True(t, ok)
	assert.Same(t, call, got)

	_, ok = CallFrom(WithCall(context.Background(), nil))
	assert.False(t, ok)
	assert.Empty(t, FunctionName(context.Background()))
}

func TestOutbox_Truncate(t *testing.T) {
	var o Outbox
	o.Emit("m", 1, 1, []byte("a"))
	events, logs := o.Len()

	o.Emit("m", 1, 1, []byte("b"))
	o.Log("m", 1, entities.LogInfo, []byte("x"))
	o.Truncate(events, logs)

	require.Len(t, o.Events, 1)
	assert.Empty(t, o.Logs)

	o.Emit("m", 1, 1, []byte("c"))
	assert.Equal(t, uint32(1), o.Events[1].Index)

	o.Reset()
	assert.Empty(t, o.Events)
}
