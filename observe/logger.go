package observe

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// Logger is the structured logging interface used across the module.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: logging is best-effort and must not panic.
// - Redaction: values under keys in RedactedFields are never emitted.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that attaches the fields to every entry.
	With(fields ...Field) Logger

	// WithOp returns a logger bound to one operation's metadata.
	WithOp(meta OpMeta) Logger
}

// Field is a structured log field.
type Field struct {
	Key   string
	Value any
}

// LogLevel is a logging severity level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel parses a level name; unknown names parse as info.
func ParseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// String returns the level name.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// jsonLogger writes one JSON object per entry.
type jsonLogger struct {
	level LogLevel
	mu    *sync.Mutex
	out   io.Writer
	base  map[string]any
}

// NewLogger creates a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter creates a JSON logger with a custom writer.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &jsonLogger{
		level: ParseLogLevel(level),
		mu:    &sync.Mutex{},
		out:   w,
		base:  map[string]any{},
	}
}

func (l *jsonLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields)
}

func (l *jsonLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields)
}

func (l *jsonLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields)
}

func (l *jsonLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelError, msg, fields)
}

func (l *jsonLogger) With(fields ...Field) Logger {
	base := make(map[string]any, len(l.base)+len(fields))
	for k, v := range l.base {
		base[k] = v
	}
	for _, f := range fields {
		base[f.Key] = redact(f)
	}
	return &jsonLogger{level: l.level, mu: l.mu, out: l.out, base: base}
}

func (l *jsonLogger) WithOp(meta OpMeta) Logger {
	fields := []Field{
		{Key: "op.kind", Value: meta.Kind},
		{Key: "op.name", Value: meta.Name},
	}
	if meta.Audience != "" {
		fields = append(fields, Field{Key: "op.audience", Value: meta.Audience})
	}
	if meta.Connection != "" {
		fields = append(fields, Field{Key: "op.connection", Value: meta.Connection})
	}
	return l.With(fields...)
}

func (l *jsonLogger) log(level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.base)+len(fields)+3)
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	for k, v := range l.base {
		entry[k] = v
	}
	for _, f := range fields {
		entry[f.Key] = redact(f)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(data)
	_, _ = l.out.Write([]byte("\n"))
}

var redactedKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RedactedFields))
	for _, k := range RedactedFields {
		m[k] = struct{}{}
	}
	return m
}()

func redact(f Field) any {
	if _, ok := redactedKeys[f.Key]; ok {
		return "[REDACTED]"
	}
	return f.Value
}

// NopLogger discards all entries.
type NopLogger struct{}

func (NopLogger) Debug(context.Context, string, ...Field) {}
func (NopLogger) Info(context.Context, string, ...Field)  {}
func (NopLogger) Warn(context.Context, string, ...Field)  {}
func (NopLogger) Error(context.Context, string, ...Field) {}
func (n NopLogger) With(...Field) Logger                  { return n }
func (n NopLogger) WithOp(OpMeta) Logger                  { return n }

// Ensure implementations satisfy Logger.
var (
	_ Logger = (*jsonLogger)(nil)
	_ Logger = NopLogger{}
)
