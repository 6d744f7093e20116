package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// console is where records go when no log file is configured.
var console io.Writer = os.Stdout

// InstrumentationName is the OTel logger name used by the slog bridge.
const InstrumentationName = "mission-planner"

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	graylog  io.Writer
	provider ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetGraylog attaches a GELF writer. It takes effect on the next Setup.
func (m *SlogManager) SetGraylog(w io.Writer) {
	m.graylog = w
}

// SetContextProvider registers the active mission's attributes, added to
// records whose context carries no mission of its own. It takes effect on
// the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.provider = p
}

// Setup initializes the logging system with file and optional OTel output.
// Console output is used only when no file is given. If provider is nil,
// OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	primary := Sink{Name: "console", Handler: slog.NewTextHandler(console, handlerOpts)}
	if file != nil {
		primary = Sink{Name: "file", Handler: slog.NewTextHandler(file, handlerOpts)}
	}
	sinks := []Sink{primary}

	// GELF messages carry their own timestamp
	if m.graylog != nil {
		sinks = append(sinks, Sink{Name: "graylog", Handler: slog.NewJSONHandler(m.graylog, &slog.HandlerOptions{Level: lvl})})
	}
	if provider != nil {
		sinks = append(sinks, Sink{
			Name:    "otel",
			Handler: otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(provider)),
		})
	}

	fanout := NewFanout(sinks...)
	m.logger = slog.New(NewMissionHandler(fanout, m.provider))
	m.logger.Info("Logging initialized", "level", lvl.String(), "sinks", fanout.Names())
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
