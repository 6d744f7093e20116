// Package streaming defines the wire format for pushing missions and
// generated plans to a live viewer over WebSocket.
package streaming

import (
	"encoding/json"
	"time"
)

// Message type constants matching the streaming protocol.
const (
	TypeMission     = "mission"      // acked
	TypePlanStart   = "plan_start"   // acked
	TypePlanSamples = "plan_samples" // fire-and-forget
	TypePlanEnd     = "plan_end"     // acked
)

// SamplesPerChunk bounds the samples carried by one plan_samples message.
const SamplesPerChunk = 500

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// WaypointPayload is one mission waypoint.
type WaypointPayload struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Alt    float64 `json:"alt"`
	Type   string  `json:"type"`
	Radius float64 `json:"radius,omitempty"`
	Laps   int     `json:"laps,omitempty"`
}

// MissionPayload carries a mission definition.
type MissionPayload struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Speed     float64           `json:"speed"`
	Waypoints []WaypointPayload `json:"waypoints"`
}

// PlanStartPayload opens a plan transfer.
type PlanStartPayload struct {
	ID          string    `json:"id"`
	MissionID   string    `json:"missionId"`
	Speed       float64   `json:"speed"`
	Samples     int       `json:"samples"`
	LengthM     float64   `json:"lengthM"`
	DurationS   float64   `json:"durationS"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// SamplePayload is one paced path sample.
type SamplePayload struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Heading float64 `json:"heading"`
	Orbit   bool    `json:"orbit,omitempty"`
	T       float64 `json:"t"`
}

// PlanSamplesPayload carries a contiguous run of samples starting at Offset.
type PlanSamplesPayload struct {
	PlanID  string          `json:"planId"`
	Offset  int             `json:"offset"`
	Samples []SamplePayload `json:"samples"`
}

// PlanEndPayload closes a plan transfer.
type PlanEndPayload struct {
	PlanID string `json:"planId"`
}
