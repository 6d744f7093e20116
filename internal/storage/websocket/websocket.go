package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/storage/memory"
	"github.com/orbitpath/planner/pkg/streaming"
)

// Backend pushes missions and plans to a live viewer over WebSocket.
// Reads are served from an in-process copy since the viewer is write-only
// from our side. It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	store *memory.Backend

	conn *connection
	cfg  config.WebSocketConfig

	// serialises plan transfers so chunks of two plans never interleave
	planMu sync.Mutex
}

// New creates a new WebSocket storage backend. logger may be nil.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		store:   memory.New(config.MemoryConfig{}),
		conn:    newConnection(logger),
		cfg:     cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelopeAndWait marshals the payload and waits for a server ack.
func (b *Backend) sendEnvelopeAndWait(ctx context.Context, msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.conn.sendAndWait(ctx, data, msgType, ackTimeout)
}

// SaveMission pushes the mission and waits for the viewer's ack. The
// message is cached for replay after a reconnect.
func (b *Backend) SaveMission(ctx context.Context, m *mission.Mission) error {
	if err := b.store.SaveMission(ctx, m); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeMission, missionPayload(m))
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedMissionMsg = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(ctx, data, streaming.TypeMission, ackTimeout)
}

// SavePlan streams the plan as plan_start, one or more plan_samples chunks
// and plan_end. Start and end are acked.
func (b *Backend) SavePlan(ctx context.Context, p *mission.Plan) error {
	if err := b.store.SavePlan(ctx, p); err != nil {
		return err
	}

	b.planMu.Lock()
	defer b.planMu.Unlock()

	if err := b.sendEnvelopeAndWait(ctx, streaming.TypePlanStart, planStartPayload(p)); err != nil {
		return err
	}

	samples := samplePayloads(p)
	for off := 0; off < len(samples); off += streaming.SamplesPerChunk {
		end := min(off+streaming.SamplesPerChunk, len(samples))
		data, err := marshalEnvelope(streaming.TypePlanSamples, streaming.PlanSamplesPayload{
			PlanID:  p.ID,
			Offset:  off,
			Samples: samples[off:end],
		})
		if err != nil {
			return err
		}
		if !b.conn.send(data) {
			return fmt.Errorf("send queue full while streaming plan %s", p.ID)
		}
	}

	return b.sendEnvelopeAndWait(ctx, streaming.TypePlanEnd, streaming.PlanEndPayload{PlanID: p.ID})
}

// GetMission returns a mission saved through this backend.
func (b *Backend) GetMission(ctx context.Context, id string) (*mission.Mission, error) {
	return b.store.GetMission(ctx, id)
}

// GetPlan returns a plan saved through this backend.
func (b *Backend) GetPlan(ctx context.Context, id string) (*mission.Plan, error) {
	return b.store.GetPlan(ctx, id)
}

// ListPlans lists plans saved through this backend.
func (b *Backend) ListPlans(ctx context.Context) ([]mission.PlanSummary, error) {
	return b.store.ListPlans(ctx)
}

func missionPayload(m *mission.Mission) streaming.MissionPayload {
	doc := m.Document()
	out := streaming.MissionPayload{
		ID:        m.ID,
		Name:      m.Name,
		Speed:     m.Speed,
		Waypoints: make([]streaming.WaypointPayload, len(doc.Waypoints)),
	}
	for i, w := range doc.Waypoints {
		out.Waypoints[i] = streaming.WaypointPayload{
			Lat:    w.Lat,
			Lon:    w.Lon,
			Alt:    w.Alt,
			Type:   w.Type,
			Radius: w.Radius,
			Laps:   w.Laps,
		}
	}
	return out
}

func planStartPayload(p *mission.Plan) streaming.PlanStartPayload {
	s := p.Summary()
	return streaming.PlanStartPayload{
		ID:          s.ID,
		MissionID:   s.MissionID,
		Speed:       p.Timeline.Speed,
		Samples:     s.Samples,
		LengthM:     s.LengthM,
		DurationS:   s.DurationS,
		GeneratedAt: s.GeneratedAt,
	}
}

func samplePayloads(p *mission.Plan) []streaming.SamplePayload {
	out := make([]streaming.SamplePayload, len(p.Timeline.Frames))
	for i, f := range p.Timeline.Frames {
		out[i] = streaming.SamplePayload{
			Lat:     f.Point.Lat,
			Lon:     f.Point.Lon,
			Alt:     f.Point.Alt,
			Heading: f.Point.Heading,
			Orbit:   f.Point.Orbit,
			T:       f.Offset.Seconds(),
		}
	}
	return out
}
