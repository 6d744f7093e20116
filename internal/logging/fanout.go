package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Sink is one named log destination: the log file or console, Graylog, or
// the OTel bridge.
type Sink struct {
	Name    string
	Handler slog.Handler
}

// Fanout delivers each record to every sink that accepts its level.
type Fanout struct {
	sinks []Sink
}

// NewFanout skips sinks without a handler so optional destinations can be
// passed unconditionally.
func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{sinks: make([]Sink, 0, len(sinks))}
	for _, s := range sinks {
		if s.Handler != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Names lists the active sinks in delivery order.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f.sinks, func(s Sink) bool {
		return s.Handler.Enabled(ctx, level)
	})
}

// Handle keeps delivering after a sink fails and reports every failure,
// prefixed with the sink name.
func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if !s.Handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := s.Handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *Fanout) derive(fn func(slog.Handler) slog.Handler) *Fanout {
	out := &Fanout{sinks: make([]Sink, len(f.sinks))}
	for i, s := range f.sinks {
		out.sinks[i] = Sink{Name: s.Name, Handler: fn(s.Handler)}
	}
	return out
}
