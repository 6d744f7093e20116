package logging

import (
	"context"
	"log/slog"
)

// Attribute keys shared by every record that concerns a mission.
const (
	KeyMission   = "mission"
	KeyMissionID = "missionId"
	KeyPlanID    = "planId"
	KeyRequestID = "requestId"
)

// ContextProvider returns the attributes of the process-wide active
// mission, such as mission.Context.LogAttrs.
type ContextProvider func() []slog.Attr

type attrsKey struct{}

// ContextWith returns a copy of ctx whose log records carry attrs. A key
// set again replaces the earlier value.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	prev, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey{}, merged)
}

// WithPlan tags ctx with the mission and plan being generated. Empty
// values are skipped.
func WithPlan(ctx context.Context, missionID, missionName, planID string) context.Context {
	attrs := make([]slog.Attr, 0, 3)
	if missionName != "" {
		attrs = append(attrs, slog.String(KeyMission, missionName))
	}
	if missionID != "" {
		attrs = append(attrs, slog.String(KeyMissionID, missionID))
	}
	if planID != "" {
		attrs = append(attrs, slog.String(KeyPlanID, planID))
	}
	return ContextWith(ctx, attrs...)
}

// AttrsFromContext returns the attributes attached with ContextWith, one
// per key, in the order the keys were first set.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(attrsKey{}).([]slog.Attr)
	if len(attrs) < 2 {
		return attrs
	}

	pos := make(map[string]int, len(attrs))
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if i, ok := pos[a.Key]; ok {
			out[i] = a
			continue
		}
		pos[a.Key] = len(out)
		out = append(out, a)
	}
	return out
}

// MissionHandler adds mission attributes to every record. Attributes on
// the record win over those carried by the record's context, which win
// over the active mission. Concurrent requests therefore log their own
// plan even while another mission is active.
type MissionHandler struct {
	next   slog.Handler
	active ContextProvider
	// keys already bound at the current group level
	bound map[string]struct{}
}

// NewMissionHandler wraps next. active may be nil.
func NewMissionHandler(next slog.Handler, active ContextProvider) *MissionHandler {
	return &MissionHandler{next: next, active: active}
}

func (h *MissionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MissionHandler) Handle(ctx context.Context, r slog.Record) error {
	seen := make(map[string]struct{}, len(h.bound)+r.NumAttrs())
	for k := range h.bound {
		seen[k] = struct{}{}
	}
	r.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = struct{}{}
		return true
	})

	add := func(attrs []slog.Attr) {
		for _, a := range attrs {
			if _, dup := seen[a.Key]; dup {
				continue
			}
			seen[a.Key] = struct{}{}
			r.AddAttrs(a)
		}
	}
	add(AttrsFromContext(ctx))
	if h.active != nil {
		add(h.active())
	}
	return h.next.Handle(ctx, r)
}

func (h *MissionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = struct{}{}
	}
	for _, a := range attrs {
		bound[a.Key] = struct{}{}
	}
	return &MissionHandler{next: h.next.WithAttrs(attrs), active: h.active, bound: bound}
}

// WithGroup opens a new level: keys bound outside the group no longer
// collide with the mission attributes added inside it.
func (h *MissionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &MissionHandler{next: h.next.WithGroup(name), active: h.active}
}
