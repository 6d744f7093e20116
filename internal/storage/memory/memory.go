package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/storage"
)

// Backend keeps missions and plans in memory and exports every saved plan
// to a JSON file.
type Backend struct {
	cfg config.MemoryConfig

	missions map[string]*mission.Mission
	plans    map[string]*mission.Plan

	lastExportPath string
	lastExport     storage.UploadMetadata
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:      cfg,
		missions: make(map[string]*mission.Mission),
		plans:    make(map[string]*mission.Plan),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveMission stores m, replacing any mission with the same ID.
func (b *Backend) SaveMission(_ context.Context, m *mission.Mission) error {
	if m.ID == "" {
		return fmt.Errorf("mission has no ID")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.missions[m.ID] = m
	return nil
}

// SavePlan writes the export file when an output directory is configured,
// then stores p. A failed export leaves the plan unstored.
func (b *Backend) SavePlan(_ context.Context, p *mission.Plan) error {
	if p.ID == "" {
		return fmt.Errorf("plan has no ID")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir != "" {
		if err := b.exportJSON(p); err != nil {
			return err
		}
	}
	b.plans[p.ID] = p
	return nil
}

// GetMission returns the mission with the given ID.
func (b *Backend) GetMission(_ context.Context, id string) (*mission.Mission, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.missions[id]
	if !ok {
		return nil, fmt.Errorf("mission %q: %w", id, storage.ErrNotFound)
	}
	return m, nil
}

// GetPlan returns the plan with the given ID.
func (b *Backend) GetPlan(_ context.Context, id string) (*mission.Plan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %q: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

// ListPlans returns all plan summaries, newest first.
func (b *Backend) ListPlans(_ context.Context) ([]mission.PlanSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]mission.PlanSummary, 0, len(b.plans))
	for _, p := range b.plans {
		out = append(out, p.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].GeneratedAt.After(out[j].GeneratedAt)
	})
	return out, nil
}

// GetExportedFilePath returns the path of the last export, or "".
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export.
func (b *Backend) GetExportMetadata() storage.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExport
}
