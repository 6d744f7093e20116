package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/orbitpath/planner/internal/mission"
	"github.com/orbitpath/planner/internal/storage"
)

// PlanExport is the root JSON structure of an exported plan.
type PlanExport struct {
	PlanID      string           `json:"planId"`
	Mission     mission.Document `json:"mission"`
	Speed       float64          `json:"speed"`
	LengthM     float64          `json:"lengthM"`
	DurationS   float64          `json:"durationS"`
	GeneratedAt time.Time        `json:"generatedAt"`
	Samples     []SampleJSON     `json:"samples"`
}

// SampleJSON is one paced sample.
type SampleJSON struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Alt     float64 `json:"alt"`
	Heading float64 `json:"heading"`
	Orbit   bool    `json:"orbit,omitempty"`
	T       float64 `json:"t"` // seconds since the first sample
}

// exportJSON writes p to OutputDir, gzipped when CompressOutput is set.
// Caller holds b.mu.
func (b *Backend) exportJSON(p *mission.Plan) error {
	export := NewPlanExport(p)

	name := "plan"
	if p.Mission != nil && p.Mission.Name != "" {
		name = strings.NewReplacer(" ", "_", ":", "_", "/", "_").Replace(p.Mission.Name)
	}
	timestamp := p.GeneratedAt.UTC().Format("20060102_150405")

	filename := fmt.Sprintf("%s_%s_%s.json", name, timestamp, shortID(p.ID))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExport = storage.UploadMetadata{
		PlanID:      p.ID,
		MissionName: export.Mission.Name,
		Samples:     len(export.Samples),
		DurationS:   export.DurationS,
	}
	return nil
}

// NewPlanExport builds the export document for p.
func NewPlanExport(p *mission.Plan) PlanExport {
	export := PlanExport{
		PlanID:      p.ID,
		Speed:       p.Timeline.Speed,
		LengthM:     p.Timeline.Length,
		DurationS:   p.Timeline.Duration.Seconds(),
		GeneratedAt: p.GeneratedAt,
		Samples:     make([]SampleJSON, 0, len(p.Timeline.Frames)),
	}
	if p.Mission != nil {
		export.Mission = p.Mission.Document()
	}
	for _, f := range p.Timeline.Frames {
		export.Samples = append(export.Samples, SampleJSON{
			Lat:     f.Point.Lat,
			Lon:     f.Point.Lon,
			Alt:     f.Point.Alt,
			Heading: f.Point.Heading,
			Orbit:   f.Point.Orbit,
			T:       f.Offset.Seconds(),
		})
	}
	return export
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeJSON(path string, data PlanExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data PlanExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
