package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func swapConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := console
	console = &buf
	t.Cleanup(func() { console = orig })
	return &buf
}

func TestSetup_Sinks(t *testing.T) {
	tests := []struct {
		name      string
		toFile    bool
		graylog   bool
		wantSinks string
	}{
		{"console", false, false, "sinks=[console]"},
		{"file", true, false, "sinks=[file]"},
		{"file and graylog", true, true, `sinks="[file graylog]"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := swapConsole(t)
			var file, gelf bytes.Buffer

			m := NewSlogManager()
			if tt.graylog {
				m.SetGraylog(&gelf)
			}
			if tt.toFile {
				m.Setup(&file, "info", nil)
			} else {
				m.Setup(nil, "info", nil)
			}
			m.Logger().Info("Plan generated", "samples", 27)

			primary := stdout
			if tt.toFile {
				primary = &file
				assert.Empty(t, stdout.String())
			}
			assert.Contains(t, primary.String(), "Logging initialized")
			assert.Contains(t, primary.String(), tt.wantSinks)
			assert.Contains(t, primary.String(), "samples=27")

			if tt.graylog {
				assert.Contains(t, gelf.String(), `"msg":"Plan generated","samples":27`)
			} else {
				assert.Empty(t, gelf.String())
			}
		})
	}
}

func TestSetup_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug", true, true},
		{"INFO", false, true},
		{"warn", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			m := NewSlogManager()
			m.Setup(&buf, tt.level, nil)

			m.Logger().Debug("HTTP request")
			m.Logger().Info("Plan generated")
			m.Logger().Warn("Failed to write plan to sink")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(out, "HTTP request"))
			assert.Equal(t, tt.wantInfo, strings.Contains(out, `msg="Plan generated"`))
			assert.Contains(t, out, "Failed to write plan to sink")
		})
	}
}

func TestSetup_MissionAttrs(t *testing.T) {
	var buf bytes.Buffer
	active := "Survey"

	m := NewSlogManager()
	m.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{slog.String(KeyMission, active)}
	})
	m.Setup(&buf, "info", nil)

	m.Logger().Info("Status")
	active = "Chimney"
	m.Logger().Info("Status")
	ctx := WithPlan(context.Background(), "m-9", "Tower", "p-9")
	m.Logger().InfoContext(ctx, "Plan generated")

	out := buf.String()
	assert.Contains(t, out, "msg=Status mission=Survey\n")
	assert.Contains(t, out, "msg=Status mission=Chimney\n")
	assert.Contains(t, out, `msg="Plan generated" mission=Tower missionId=m-9 planId=p-9`)
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var first, second bytes.Buffer
	m := NewSlogManager()

	m.Setup(&first, "info", nil)
	m.Logger().Info("Plan generated", KeyPlanID, "p-1")
	m.Setup(&second, "info", nil)
	m.Logger().Info("Plan generated", KeyPlanID, "p-2")

	assert.Contains(t, first.String(), "planId=p-1")
	assert.NotContains(t, first.String(), "planId=p-2")
	assert.Contains(t, second.String(), "planId=p-2")
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	assert.Equal(t, slog.Default(), NewSlogManager().Logger())
}

func TestSetup_OTelSinkAndFlush(t *testing.T) {
	m := NewSlogManager()
	require.NoError(t, m.Flush(context.Background()))

	var buf bytes.Buffer
	m.Setup(&buf, "info", sdklog.NewLoggerProvider())
	m.Logger().Info("Plan generated")

	assert.Contains(t, buf.String(), `sinks="[file otel]"`)
	assert.NoError(t, m.Flush(context.Background()))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "DEBUG": slog.LevelDebug,
		"info": slog.LevelInfo, "warn": slog.LevelWarn, "WARN": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	} {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
