// Package gormstorage implements storage.Backend on any GORM database.
// SQLite and Postgres share this code; driver specifics live in the
// database package.
package gormstorage

import (
	"context"
	"errors"
	"fmt"

	"github.com/orbitpath/planner/internal/database"
	"github.com/orbitpath/planner/internal/logging"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/model"
	"github.com/orbitpath/planner/internal/model/convert"
	"github.com/orbitpath/planner/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoDatabase is returned by Init when no DB was supplied.
var ErrNoDatabase = errors.New("gorm backend has no database")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB         *gorm.DB
	LogManager *logging.SlogManager
}

// Backend stores missions and plans through GORM.
type Backend struct {
	db  *gorm.DB
	log *logging.SlogManager
}

// New creates a GORM backend. Call Init before use.
func New(deps Dependencies) *Backend {
	log := deps.LogManager
	if log == nil {
		log = logging.NewSlogManager()
	}
	return &Backend{db: deps.DB, log: log}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return ErrNoDatabase
	}
	if err := database.Migrate(b.db); err != nil {
		return err
	}
	b.log.Logger().Debug("GORM storage ready", "dialect", b.db.Dialector.Name())
	return nil
}

// Close is a no-op; the connection belongs to whoever opened it.
func (b *Backend) Close() error {
	return nil
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// SaveMission upserts the mission row and replaces its waypoints.
func (b *Backend) SaveMission(ctx context.Context, m *mission.Mission) error {
	if m.ID == "" {
		return fmt.Errorf("mission has no ID")
	}
	gm := convert.MissionToModel(m)

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).
			Omit(clause.Associations).
			Create(&gm).Error; err != nil {
			return fmt.Errorf("failed to upsert mission: %w", err)
		}
		if err := tx.Where("mission_id = ?", gm.ID).Delete(&model.Waypoint{}).Error; err != nil {
			return fmt.Errorf("failed to clear waypoints: %w", err)
		}
		if len(gm.Waypoints) == 0 {
			return nil
		}
		if err := tx.Create(&gm.Waypoints).Error; err != nil {
			return fmt.Errorf("failed to insert waypoints: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.log.Logger().Debug("Saved mission", "missionId", m.ID, "waypoints", len(gm.Waypoints))
	return nil
}

// SavePlan inserts the plan row.
func (b *Backend) SavePlan(ctx context.Context, p *mission.Plan) error {
	if p.ID == "" {
		return fmt.Errorf("plan has no ID")
	}
	fp, err := convert.PlanToModel(p)
	if err != nil {
		return err
	}
	if err := b.db.WithContext(ctx).Omit(clause.Associations).Create(&fp).Error; err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}
	b.log.Logger().Debug("Saved plan", "planId", p.ID, "samples", fp.SampleCount)
	return nil
}

// GetMission loads a mission with its waypoints.
func (b *Backend) GetMission(ctx context.Context, id string) (*mission.Mission, error) {
	var gm model.Mission
	err := b.db.WithContext(ctx).
		Preload("Waypoints", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		First(&gm, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("mission %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mission %q: %w", id, err)
	}
	return convert.MissionFromModel(gm), nil
}

// GetPlan loads a plan together with its mission.
func (b *Backend) GetPlan(ctx context.Context, id string) (*mission.Plan, error) {
	var fp model.FlightPlan
	err := b.db.WithContext(ctx).First(&fp, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("plan %q: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan %q: %w", id, err)
	}

	var m *mission.Mission
	if fp.MissionID != "" {
		m, err = b.GetMission(ctx, fp.MissionID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	return convert.PlanFromModel(fp, m)
}

// ListPlans returns plan summaries, newest first. Frames are not loaded.
func (b *Backend) ListPlans(ctx context.Context) ([]mission.PlanSummary, error) {
	var fps []model.FlightPlan
	err := b.db.WithContext(ctx).
		Omit("frames", "path").
		Preload("Mission").
		Order("generated_at DESC, id").
		Find(&fps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	out := make([]mission.PlanSummary, len(fps))
	for i, fp := range fps {
		out[i] = convert.PlanSummaryFromModel(fp)
	}
	return out, nil
}
