package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/orbitpath/planner/internal/mission"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger         *slog.Logger
	MissionContext *mission.Context
	StorageType    string
	StatusPath     string // rewritten every Interval when set
	Interval       time.Duration
}

// Status is a snapshot of the running planner.
type Status struct {
	Time            time.Time `json:"time"`
	UptimeS         float64   `json:"uptimeS"`
	Storage         string    `json:"storage"`
	ActiveMission   string    `json:"activeMission,omitempty"`
	ActiveMissionID string    `json:"activeMissionId,omitempty"`
	LastPlanID      string    `json:"lastPlanId,omitempty"`
	Goroutines      int       `json:"goroutines"`
	HeapAllocBytes  uint64    `json:"heapAllocBytes"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	startedAt time.Time
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MissionContext == nil {
		deps.MissionContext = mission.NewContext()
	}
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	return &Service{
		deps:      deps,
		startedAt: time.Now(),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current program status
func (s *Service) GetStatus() Status {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := Status{
		Time:           time.Now().UTC(),
		UptimeS:        time.Since(s.startedAt).Seconds(),
		Storage:        s.deps.StorageType,
		LastPlanID:     s.deps.MissionContext.PlanID(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}
	if m := s.deps.MissionContext.GetMission(); m != nil {
		st.ActiveMission = m.Name
		st.ActiveMissionID = m.ID
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st := s.GetStatus()
				logger.Debug("Status",
					"goroutines", st.Goroutines,
					"heapAllocBytes", st.HeapAllocBytes,
					"lastPlanId", st.LastPlanID,
				)
				if s.deps.StatusPath != "" {
					if err := writeStatus(s.deps.StatusPath, st); err != nil {
						logger.Error("Error writing status file", "error", err)
					}
				}
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}

func writeStatus(path string, st Status) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}
