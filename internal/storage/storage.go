package storage

import (
	"context"
	"errors"

	"github.com/orbitpath/planner/internal/mission"
)

// ErrNotFound is returned by lookups for unknown IDs.
var ErrNotFound = errors.New("not found")

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Writes. SavePlan expects the plan's mission to have been saved first.
	SaveMission(ctx context.Context, m *mission.Mission) error
	SavePlan(ctx context.Context, p *mission.Plan) error

	// Reads
	GetMission(ctx context.Context, id string) (*mission.Mission, error)
	GetPlan(ctx context.Context, id string) (*mission.Plan, error)
	ListPlans(ctx context.Context) ([]mission.PlanSummary, error)
}

// UploadMetadata describes an exported plan file for the viewer.
type UploadMetadata struct {
	PlanID      string
	MissionName string
	Samples     int
	DurationS   float64
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to the viewer.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() UploadMetadata
}
