package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func init() {
	Log = logrus.New()
	Log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})
	Log.SetOutput(os.Stdout)
	Log.SetLevel(logrus.InfoLevel)
}

// Configure applies level, format ("json" or "text") and output to the global logger.
// Empty values keep the current setting.
func Configure(level, format string, out io.Writer) error {
	if level != "" {
		lvl, err := logrus.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}
		Log.SetLevel(lvl)
	}

	switch strings.ToLower(format) {
	case "", "json":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}

	if out != nil {
		Log.SetOutput(out)
	}
	return nil
}

// WithTrace returns an entry tagged with the given trace id
func WithTrace(traceID string) *logrus.Entry {
	return Log.WithField("trace_id", traceID)
}

type traceKey struct{}

// ContextWithTrace attaches a trace id to ctx for FromContext.
func ContextWithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// FromContext returns an entry tagged with the trace id carried by ctx, if any.
func FromContext(ctx context.Context) *logrus.Entry {
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return WithTrace(id)
	}
	return logrus.NewEntry(Log)
}
