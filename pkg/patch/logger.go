package patch

import "context"

// Field represents a key-value pair in structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a Field from a key-value pair.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logger receives progress from Apply. It is an observability side channel;
// nothing in the engine depends on what a Logger does with the entries.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, err error, fields ...Field)
}

// NoOpLogger is a logger that discards all log entries.
type NoOpLogger struct{}

func (NoOpLogger) Debug(_ context.Context, _ string, _ ...Field)          {}
func (NoOpLogger) Info(_ context.Context, _ string, _ ...Field)           {}
func (NoOpLogger) Warn(_ context.Context, _ string, _ ...Field)           {}
func (NoOpLogger) Error(_ context.Context, _ string, _ error, _ ...Field) {}
