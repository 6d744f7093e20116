package mission

import (
	"log/slog"
	"sync"
)

// Context tracks the mission most recently planned, for log enrichment and
// status reporting.
type Context struct {
	mu      sync.RWMutex
	mission *Mission
	planID  string
}

// NewContext creates a Context with no active mission.
func NewContext() *Context {
	return &Context{}
}

// GetMission returns the active mission, or nil.
func (mc *Context) GetMission() *Mission {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.mission
}

// PlanID returns the ID of the last plan generated for the active mission.
func (mc *Context) PlanID() string {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.planID
}

// SetMission records the active mission and its latest plan.
func (mc *Context) SetMission(m *Mission, planID string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.mission = m
	mc.planID = planID
}

// LogAttrs returns the attributes describing the active mission. It
// satisfies logging.ContextProvider.
func (mc *Context) LogAttrs() []slog.Attr {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	if mc.mission == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("mission", mc.mission.Name),
		slog.String("planId", mc.planID),
	}
}
