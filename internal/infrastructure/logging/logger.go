package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// Config holds logger configuration
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, text
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Environment string
	// SourceSystem tags every line with the tracker the process reads.
	SourceSystem string
}

// ParseLevel maps a level name to a slog level. Unknown names log at info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger creates a new structured logger with the given configuration
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(a.Key, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	static := []slog.Attr{
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
	}
	if cfg.SourceSystem != "" {
		static = append(static, slog.String("source_system", cfg.SourceSystem))
	}

	return slog.New(&contextHandler{handler: handler.WithAttrs(static)})
}

type attrsKey struct{}

// With returns a context whose log lines carry attrs. A later attr replaces
// an earlier one with the same key.
func With(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing := attrsFrom(ctx)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	for _, a := range existing {
		if !hasKey(attrs, a.Key) {
			merged = append(merged, a)
		}
	}
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

func attrsFrom(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	return attrs
}

func hasKey(attrs []slog.Attr, key string) bool {
	for _, a := range attrs {
		if a.Key == key {
			return true
		}
	}
	return false
}

// WithRequestID tags the context with a request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return With(ctx, slog.String("request_id", requestID))
}

// WithCaller tags the context with the authenticated caller.
func WithCaller(ctx context.Context, employeeID int64, role string) context.Context {
	return With(ctx, slog.Int64("employee_id", employeeID), slog.String("role", role))
}

// RequestID returns the request id the context was tagged with.
func RequestID(ctx context.Context) string {
	for _, a := range attrsFrom(ctx) {
		if a.Key == "request_id" {
			return a.Value.String()
		}
	}
	return ""
}

// contextHandler appends the attrs carried by the record's context.
type contextHandler struct {
	handler slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := attrsFrom(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name)}
}

// Panic logs a recovered panic with its stack.
func Panic(ctx context.Context, logger *slog.Logger, recovered any, attrs ...any) {
	attrs = append(attrs,
		"panic", recovered,
		"stack_trace", string(debug.Stack()),
	)
	logger.ErrorContext(ctx, "panic recovered", attrs...)
}
