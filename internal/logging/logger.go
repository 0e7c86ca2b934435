package logging

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/asynkron/versionpatcher/pkg/patch"
)

// Logger adapts an apex/log logger to patch.Logger. Trace IDs carried on the
// context are attached to every entry.
type Logger struct {
	entry log.Interface
}

var _ patch.Logger = (*Logger)(nil)

// New creates a logger that writes entries at or above level to w.
func New(w io.Writer, level log.Level) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{entry: &log.Logger{Handler: NewHandler(w), Level: level}}
}

// ParseLevel maps a level name to an apex level, defaulting to info for an
// empty name.
func ParseLevel(name string) (log.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return log.InfoLevel, nil
	}
	if name == "trace" {
		return log.DebugLevel, nil
	}
	return log.ParseLevel(name)
}

func (l *Logger) with(ctx context.Context, fields []patch.Field) log.Interface {
	f := make(log.Fields, len(fields)+1)
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	if id := traceID(ctx); id != "" {
		f["trace_id"] = id
	}
	if len(f) == 0 {
		return l.entry
	}
	return l.entry.WithFields(f)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...patch.Field) {
	l.with(ctx, fields).Debug(msg)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...patch.Field) {
	l.with(ctx, fields).Info(msg)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...patch.Field) {
	l.with(ctx, fields).Warn(msg)
}

func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...patch.Field) {
	l.with(ctx, fields).WithError(err).Error(msg)
}

// Handler formats entries as "timestamp L message key=value ..." lines.
type Handler struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewHandler returns a Handler writing to w.
func NewHandler(w io.Writer) *Handler {
	return &Handler{w: w, now: time.Now}
}

// HandleLog implements the log.Handler interface.
func (h *Handler) HandleLog(e *log.Entry) error {
	level := "?"
	switch e.Level {
	case log.DebugLevel:
		level = "D"
	case log.InfoLevel:
		level = "I"
	case log.WarnLevel:
		level = "W"
	case log.ErrorLevel:
		level = "E"
	case log.FatalLevel:
		level = "F"
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", h.now().Format("2006-01-02 15:04:05"), level, e.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Fields[k])
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

type traceIDKey struct{}

// WithTraceID adds a trace ID to the context for correlating one apply run.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

func traceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// NewTraceID creates a trace ID for one run.
func NewTraceID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
