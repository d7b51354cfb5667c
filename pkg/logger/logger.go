// Package logger configures the process-wide zerolog logger and adapts it
// to the key/value logging interface used by the service core.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init initializes the global logger. Development mode writes human
// readable console output instead of JSON.
func Init(serviceName string, isDevelopment bool) {
	InitWithWriter(serviceName, isDevelopment, os.Stdout)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(serviceName string, isDevelopment bool, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	output := w
	if isDevelopment {
		output = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Logger = Logger
}

// WithContext returns a logger carrying the trace and span ids of ctx.
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Logger.With().Logger()
	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}

// Info logs at info level with context
func Info(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Info()
}

// Error logs at error level with context
func Error(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Error()
}

// Debug logs at debug level with context
func Debug(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Debug()
}

// Warn logs at warn level with context
func Warn(ctx context.Context) *zerolog.Event {
	return WithContext(ctx).Warn()
}

// SetLevel sets the global log level. Unknown names select info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Adapter exposes a zerolog.Logger through Debug/Info/Warn/Error calls
// taking alternating key/value arguments.
type Adapter struct {
	l zerolog.Logger
}

// NewAdapter wraps l.
func NewAdapter(l zerolog.Logger) Adapter { return Adapter{l: l} }

// Default wraps the global Logger as it is at call time.
func Default() Adapter { return Adapter{l: Logger} }

func (a Adapter) Debug(msg string, args ...any) { emit(a.l.Debug(), msg, args) }
func (a Adapter) Info(msg string, args ...any)  { emit(a.l.Info(), msg, args) }
func (a Adapter) Warn(msg string, args ...any)  { emit(a.l.Warn(), msg, args) }
func (a Adapter) Error(msg string, args ...any) { emit(a.l.Error(), msg, args) }

func emit(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		if i+1 >= len(args) {
			ev = ev.Interface("!BADKEY", args[i])
			break
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		case fmt.Stringer:
			ev = ev.Stringer(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
