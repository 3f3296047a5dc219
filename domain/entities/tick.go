package entities

// TickContext is created fresh by the scheduler for every tick and discarded once
// the tick commits.
type TickContext struct {
	// Inbox holds, per module id, the events drained from the bus at tick start.
	Inbox map[string][]Event

	// Tick is the tick number, starting at 1.
	Tick uint64

	// DeltaTime is the simulated step in seconds. Never derived from a wall clock.
	DeltaTime float32
}

// LogLevel of a guest log line.
type LogLevel uint8

const (
	LogInfo LogLevel = iota
	LogWarn
	LogError
)

func (l LogLevel) String() string {
	switch l {
	case LogWarn:
		return "warn"
	case LogError:
		return "error"
	default:
		return "info"
	}
}

// LogRecord is one guest log line, flushed at commit time.
type LogRecord struct {
	Module  string
	Message []byte
	Tick    uint64
	Level   LogLevel
}
