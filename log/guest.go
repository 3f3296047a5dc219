package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gers-dev/gers-host/domain/entities"
)

// GuestSink writes committed guest log lines to a zap logger with the fields
// "module" and "tick". It implements ports.LogSink.
type GuestSink struct {
	logger *zap.Logger
}

// NewGuestSink returns a sink writing to logger, or to the package default when
// logger is nil.
func NewGuestSink(logger *zap.Logger) *GuestSink {
	if logger == nil {
		logger = Logger()
	}
	return &GuestSink{logger: logger.Named("guest")}
}

// WriteGuestLog writes one line. The message is logged verbatim.
func (s *GuestSink) WriteGuestLog(rec entities.LogRecord) {
	if ce := s.logger.Check(zapLevel(rec.Level), string(rec.Message)); ce != nil {
		ce.Write(zap.String("module", rec.Module), zap.Uint64("tick", rec.Tick))
	}
}

func zapLevel(l entities.LogLevel) zapcore.Level {
	switch l {
	case entities.LogWarn:
		return zapcore.WarnLevel
	case entities.LogError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
