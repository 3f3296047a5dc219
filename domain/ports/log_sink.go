package ports

import "github.com/gers-dev/gers-host/domain/entities"

// LogSink receives guest log lines in commit order.
type LogSink interface {
	WriteGuestLog(rec entities.LogRecord)
}

// LogSinkFunc adapts a function to LogSink.
type LogSinkFunc func(rec entities.LogRecord)

// WriteGuestLog implements LogSink.
func (f LogSinkFunc) WriteGuestLog(rec entities.LogRecord) {
	f(rec)
}
