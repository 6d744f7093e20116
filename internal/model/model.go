package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Mission{},
	&Waypoint{},
	&FlightPlan{},
}

// Mission is a stored mission document
type Mission struct {
	ID          string       `json:"id" gorm:"primaryKey;size:36"`
	Name        string       `json:"name" gorm:"size:200"`
	Speed       float64      `json:"speed"`
	CreatedAt   time.Time    `json:"createdAt" gorm:"index:idx_mission_created"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	Waypoints   []Waypoint   `json:"waypoints" gorm:"constraint:OnDelete:CASCADE"`
	FlightPlans []FlightPlan `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (*Mission) TableName() string {
	return "missions"
}

// Waypoint is one entry of a mission's waypoint list. Position holds
// lon, lat and altitude as an XYZ point.
type Waypoint struct {
	ID        uint       `json:"-" gorm:"primaryKey"`
	MissionID string     `json:"missionId" gorm:"size:36;index:idx_waypoint_order,priority:1"`
	Seq       int        `json:"seq" gorm:"index:idx_waypoint_order,priority:2"`
	Position  geom.Point `json:"position"`
	Kind      string     `json:"kind" gorm:"size:16;default:normal"`
	Radius    float64    `json:"radius"`
	Laps      int        `json:"laps"`
}

func (*Waypoint) TableName() string {
	return "waypoints"
}

// FlightPlan is a generated path. Path carries the sample positions
// for spatial queries; Frames carries every sample with its pacing.
type FlightPlan struct {
	ID           string          `json:"id" gorm:"primaryKey;size:36"`
	MissionID    string          `json:"missionId" gorm:"size:36;index:idx_plan_mission"`
	Mission      Mission         `json:"-" gorm:"foreignKey:MissionID"`
	Speed        float64         `json:"speed"`
	SampleCount  int             `json:"sampleCount"`
	OrbitSamples int             `json:"orbitSamples"`
	LengthM      float64         `json:"lengthM"`
	Duration     time.Duration   `json:"duration"`
	Path         geom.LineString `json:"-"`
	Frames       datatypes.JSON  `json:"frames"`
	GeneratedAt  time.Time       `json:"generatedAt" gorm:"index:idx_plan_generated"`
}

func (*FlightPlan) TableName() string {
	return "flight_plans"
}

// FrameRow is one element of FlightPlan.Frames. The position is repeated
// here because Path is empty for single-sample plans.
type FrameRow struct {
	Lat      float64       `json:"lat"`
	Lon      float64       `json:"lon"`
	Alt      float64       `json:"alt"`
	Heading  float64       `json:"h"`
	Orbit    bool          `json:"o,omitempty"`
	Offset   time.Duration `json:"t"`
	Distance float64       `json:"d"`
}
