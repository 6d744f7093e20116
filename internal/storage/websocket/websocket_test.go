package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitpath/planner/internal/config"
	"github.com/orbitpath/planner/internal/flightpath"
	"github.com/orbitpath/planner/internal/geodesy"
	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/playback"
	"github.com/orbitpath/planner/internal/storage"
	"github.com/orbitpath/planner/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

// testServer creates an httptest server that upgrades to WebSocket,
// records received messages, and acks every message type in ackTypes.
func testServer(t *testing.T, ackTypes ...string) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	acked := make(map[string]bool, len(ackTypes))
	for _, at := range ackTypes {
		acked[at] = true
	}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.setSecret(r.URL.Query().Get("secret"))
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		ml.connected()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if acked[env.Type] {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))

	return srv, ml
}

type messageLog struct {
	mu          sync.Mutex
	messages    []streaming.Envelope
	secret      string
	connections atomic.Int32
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) setSecret(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = s
}

func (m *messageLog) connected() {
	m.connections.Add(1)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testMission() *mission.Mission {
	return &mission.Mission{
		ID:    "m-ws",
		Name:  "Antenna",
		Speed: 4,
		Waypoints: []flightpath.Waypoint{
			{Lat: 52.52, Lon: 13.405, Alt: 30},
			{Lat: 52.5205, Lon: 13.4055, Alt: 60, Kind: flightpath.Orbit, Radius: 150, Laps: 3},
		},
	}
}

func testPlan(m *mission.Mission) *mission.Plan {
	points := flightpath.Generate(m.Waypoints, m.Speed)
	return &mission.Plan{
		ID:           "p-ws",
		Mission:      m,
		Points:       points,
		Timeline:     playback.Schedule(points, m.Speed, geodesy.EarthRadius),
		OrbitSamples: mission.CountOrbitSamples(points),
		GeneratedAt:  time.Now().UTC(),
	}
}

func newBackend(t *testing.T, srv *httptest.Server) *Backend {
	t.Helper()
	b := New(config.WebSocketConfig{URL: wsURL(srv), Secret: "s3cret"}, slog.Default())
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSaveMission_AckedAndReadable(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeMission)
	defer srv.Close()

	b := newBackend(t, srv)
	ctx := context.Background()
	require.NoError(t, b.SaveMission(ctx, testMission()))

	msgs := ml.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, streaming.TypeMission, msgs[0].Type)

	var payload streaming.MissionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, "Antenna", payload.Name)
	require.Len(t, payload.Waypoints, 2)
	assert.Equal(t, "orbit", payload.Waypoints[1].Type)
	assert.Equal(t, 3, payload.Waypoints[1].Laps)

	ml.mu.Lock()
	assert.Equal(t, "s3cret", ml.secret)
	ml.mu.Unlock()

	got, err := b.GetMission(ctx, "m-ws")
	require.NoError(t, err)
	assert.Equal(t, "Antenna", got.Name)
}

func TestSavePlan_StreamsChunks(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeMission, streaming.TypePlanStart, streaming.TypePlanEnd)
	defer srv.Close()

	b := newBackend(t, srv)
	ctx := context.Background()
	m := testMission()
	p := testPlan(m)
	require.Greater(t, len(p.Points), streaming.SamplesPerChunk, "fixture must span several chunks")

	require.NoError(t, b.SaveMission(ctx, m))
	require.NoError(t, b.SavePlan(ctx, p))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 4)
	assert.Equal(t, streaming.TypeMission, msgs[0].Type)
	assert.Equal(t, streaming.TypePlanStart, msgs[1].Type)
	assert.Equal(t, streaming.TypePlanEnd, msgs[len(msgs)-1].Type)

	var total int
	expectOffset := 0
	for _, env := range msgs[2 : len(msgs)-1] {
		require.Equal(t, streaming.TypePlanSamples, env.Type)
		var chunk streaming.PlanSamplesPayload
		require.NoError(t, json.Unmarshal(env.Payload, &chunk))
		assert.Equal(t, "p-ws", chunk.PlanID)
		assert.Equal(t, expectOffset, chunk.Offset)
		assert.LessOrEqual(t, len(chunk.Samples), streaming.SamplesPerChunk)
		expectOffset += len(chunk.Samples)
		total += len(chunk.Samples)
	}
	assert.Equal(t, len(p.Points), total)

	var start streaming.PlanStartPayload
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &start))
	assert.Equal(t, "m-ws", start.MissionID)
	assert.Equal(t, len(p.Points), start.Samples)

	list, err := b.ListPlans(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, err = b.GetPlan(ctx, "p-ws")
	assert.NoError(t, err)
}

func TestSaveMission_ContextCancelled(t *testing.T) {
	// server never acks
	srv, _ := testServer(t)
	defer srv.Close()

	b := newBackend(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.SaveMission(ctx, testMission())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInit_DialFailure(t *testing.T) {
	b := New(config.WebSocketConfig{URL: "ws://127.0.0.1:1/live"}, nil)
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t)
	defer srv.Close()

	b := New(config.WebSocketConfig{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}

func TestReconnect_ReplaysMission(t *testing.T) {
	srv, ml := testServer(t, streaming.TypeMission)
	defer srv.Close()

	b := newBackend(t, srv)
	b.conn.initialBackoff = 10 * time.Millisecond
	require.NoError(t, b.SaveMission(context.Background(), testMission()))

	// drop the client side; the read loop notices and reconnects
	b.conn.mu.Lock()
	_ = b.conn.conn.Close()
	b.conn.mu.Unlock()

	require.Eventually(t, func() bool {
		return ml.connections.Load() == 2 && len(ml.all()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	msgs := ml.all()
	assert.Equal(t, streaming.TypeMission, msgs[1].Type)
	assert.JSONEq(t, string(msgs[0].Payload), string(msgs[1].Payload))
}

func TestMarshalEnvelope(t *testing.T) {
	data, err := marshalEnvelope(streaming.TypePlanEnd, streaming.PlanEndPayload{PlanID: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"plan_end","payload":{"planId":"x"}}`, string(data))

	_, err = marshalEnvelope("bad", func() {})
	assert.Error(t, err)
}
