package scheduler

import (
	"github.com/gers-dev/gers-host/domain/entities"
	domainerrors "github.com/gers-dev/gers-host/domain/errors"
)

// State is the scheduler's position in the tick cycle.
type State int32

const (
	AwaitingTick State = iota
	Dispatching
	Committing
)

func (s State) String() string {
	switch s {
	case AwaitingTick:
		return "AwaitingTick"
	case Dispatching:
		return "Dispatching"
	case Committing:
		return "Committing"
	default:
		return "Unknown"
	}
}

// Failure is one failed guest call. Fatal failures fault the module.
type Failure struct {
	Err      error
	ModuleID string
	Fatal    bool
}

// Detail returns the structured form of the failure.
func (f Failure) Detail() *entities.ErrorDetail {
	d := domainerrors.ToErrorDetail(f.Err)
	if d == nil {
		return nil
	}
	out := *d
	if out.Module == "" {
		out.Module = f.ModuleID
	}
	return &out
}

// TickReport describes one committed tick.
type TickReport struct {
	// Dispatched lists the modules that ran, in dispatch order.
	Dispatched []string

	// Events are the events committed to the bus, with their Seq.
	Events []entities.Event

	// Logs are the guest log lines written, in commit order.
	Logs []entities.LogRecord

	// Failures lists aborted calls and traps, in dispatch order.
	Failures []Failure

	// Declined counts events a module's event hook refused.
	Declined int

	Tick      uint64
	DeltaTime float32
}

// Faulted returns the ids of modules faulted during the tick.
func (r *TickReport) Faulted() []string {
	var ids []string
	for _, f := range r.Failures {
		if f.Fatal {
			ids = append(ids, f.ModuleID)
		}
	}
	return ids
}
