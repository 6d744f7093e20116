package server

import (
	"github.com/orbitpath/planner/internal/mission"
)

type pointResponse struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Heading float64 `json:"heading"`
	Orbit   bool    `json:"orbit,omitempty"`
	T       float64 `json:"t"` // seconds since the first sample
}

type planResponse struct {
	Plan    mission.PlanSummary `json:"plan"`
	Mission mission.Document    `json:"mission"`
	Points  []pointResponse     `json:"points"`
}

func newPlanResponse(p *mission.Plan) planResponse {
	resp := planResponse{
		Plan:   p.Summary(),
		Points: make([]pointResponse, len(p.Points)),
	}
	if p.Mission != nil {
		resp.Mission = p.Mission.Document()
	}

	frames := p.Timeline.Frames
	for i, pt := range p.Points {
		resp.Points[i] = pointResponse{
			Lat:     pt.Lat,
			Lon:     pt.Lon,
			Alt:     pt.Alt,
			Heading: pt.Heading,
			Orbit:   pt.Orbit,
		}
		if i < len(frames) {
			resp.Points[i].T = frames[i].Offset.Seconds()
		}
	}
	return resp
}
