// Package operations tracks the progress of a pipeline run so that the
// status server can report it while the run is in flight.
package operations

import (
	"maps"
	"sync"
	"time"
)

// RunStatus is the overall status of a run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// StepStatus is the status of one step of a run
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusActive    StepStatus = "active"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
)

// Run steps in execution order
const (
	StepLoadPeriodMap = "load_period_map"
	StepIngest        = "ingest"
	StepAssemble      = "assemble"
	StepExport        = "export"
)

// Steps lists the run steps in execution order
func Steps() []string {
	return []string{StepLoadPeriodMap, StepIngest, StepAssemble, StepExport}
}

// RunState is the mutable, concurrency-safe state of one run
type RunState struct {
	mu sync.RWMutex

	id        string
	status    RunStatus
	startTime time.Time
	endTime   *time.Time
	order     []string
	steps     map[string]*StepSnapshot
	err       error
}

// StepSnapshot is the state of one step
type StepSnapshot struct {
	Name      string                 `json:"name"`
	Status    StepStatus             `json:"status"`
	StartTime *time.Time             `json:"start_time,omitempty"`
	EndTime   *time.Time             `json:"end_time,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Snapshot is a point-in-time copy of a run's state
type Snapshot struct {
	ID              string         `json:"id"`
	Status          RunStatus      `json:"status"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	DurationSeconds float64        `json:"duration_seconds"`
	Steps           []StepSnapshot `json:"steps"`
	Error           string         `json:"error,omitempty"`
}

// NewRunState creates a pending run with the given steps, all pending
func NewRunState(id string, steps ...string) *RunState {
	s := &RunState{
		id:        id,
		status:    RunStatusPending,
		startTime: time.Now(),
		steps:     make(map[string]*StepSnapshot, len(steps)),
	}
	for _, name := range steps {
		s.order = append(s.order, name)
		s.steps[name] = &StepSnapshot{Name: name, Status: StepStatusPending}
	}
	return s
}

// ID returns the run id
func (s *RunState) ID() string {
	return s.id
}

// Start marks the run as running
func (s *RunState) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = RunStatusRunning
	s.startTime = time.Now()
}

// Complete marks the run as completed
func (s *RunState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = RunStatusCompleted
}

// Fail marks the run as failed
func (s *RunState) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.endTime = &now
	s.status = RunStatusFailed
	s.err = err
}

// Err returns the error the run failed with
func (s *RunState) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Status returns the overall run status
func (s *RunState) Status() RunStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// step returns the named step, adding it at the end if unknown. The
// caller holds the write lock.
func (s *RunState) step(name string) *StepSnapshot {
	st, ok := s.steps[name]
	if !ok {
		st = &StepSnapshot{Name: name, Status: StepStatusPending}
		s.steps[name] = st
		s.order = append(s.order, name)
	}
	return st
}

// BeginStep marks a step as active
func (s *RunState) BeginStep(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	st := s.step(name)
	st.Status = StepStatusActive
	st.StartTime = &now
	st.EndTime = nil
	st.Error = ""
}

// EndStep marks a step as completed, or failed when err is non-nil, and
// merges metadata into the step
func (s *RunState) EndStep(name string, err error, metadata map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	st := s.step(name)
	st.EndTime = &now
	st.Status = StepStatusCompleted
	if err != nil {
		st.Status = StepStatusFailed
		st.Error = err.Error()
	}
	if len(metadata) > 0 {
		if st.Metadata == nil {
			st.Metadata = make(map[string]interface{}, len(metadata))
		}
		maps.Copy(st.Metadata, metadata)
	}
}

// Track runs fn as the named step. The step fails when fn returns an
// error, and so does the run.
func (s *RunState) Track(name string, fn func() (map[string]interface{}, error)) error {
	s.BeginStep(name)
	metadata, err := fn()
	s.EndStep(name, err, metadata)
	if err != nil {
		s.Fail(err)
	}
	return err
}

// Snapshot returns a deep copy of the current state
func (s *RunState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := Snapshot{
		ID:        s.id,
		Status:    s.status,
		StartTime: s.startTime,
		Steps:     make([]StepSnapshot, 0, len(s.order)),
	}
	end := time.Now()
	if s.endTime != nil {
		t := *s.endTime
		out.EndTime = &t
		end = t
	}
	if s.status != RunStatusPending {
		out.DurationSeconds = end.Sub(s.startTime).Seconds()
	}
	if s.err != nil {
		out.Error = s.err.Error()
	}

	for _, name := range s.order {
		st := *s.steps[name]
		if st.StartTime != nil {
			t := *st.StartTime
			st.StartTime = &t
		}
		if st.EndTime != nil {
			t := *st.EndTime
			st.EndTime = &t
		}
		st.Metadata = maps.Clone(st.Metadata)
		out.Steps = append(out.Steps, st)
	}
	return out
}
