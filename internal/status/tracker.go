package status

import (
	"sync"
	"time"

	"wbreports/internal/config"
	"wbreports/internal/session"
)

// CabinetStatus is one cabinet of a finished run.
type CabinetStatus struct {
	Cabinet  string `json:"cabinet"`
	OK       bool   `json:"ok"`
	Step     string `json:"step,omitempty"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

// RunStatus describes a finished run.
type RunStatus struct {
	RunID     string          `json:"run_id"`
	Date      string          `json:"date"`
	Started   time.Time       `json:"started"`
	Duration  string          `json:"duration"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Error     string          `json:"error,omitempty"`
	Cabinets  []CabinetStatus `json:"cabinets"`
}

// Tracker remembers the last run. It is safe for concurrent use.
type Tracker struct {
	mu      sync.RWMutex
	started time.Time
	running bool
	runs    int
	last    *RunStatus
}

// NewTracker returns a tracker whose uptime starts now.
func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

// Begin marks a run as in progress.
func (t *Tracker) Begin() {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()
}

// Finish records the result of a run. err is the run-ending error, if any;
// cabinet failures are taken from the summary.
func (t *Tracker) Finish(s *session.Summary, err error) {
	st := &RunStatus{}
	if s != nil {
		st.RunID = s.RunID
		st.Date = s.Date.Format(config.DateLayout)
		st.Started = s.Started
		st.Duration = s.Duration.Round(time.Millisecond).String()
		st.Succeeded = len(s.Succeeded())
		st.Failed = len(s.Failed())
		for _, o := range s.Outcomes {
			cs := CabinetStatus{
				Cabinet:  o.Cabinet.Name,
				OK:       o.OK(),
				Step:     string(o.Step),
				Duration: o.Duration.Round(time.Millisecond).String(),
			}
			if o.Result != nil {
				cs.File = o.Result.ArchiveFile
			}
			if o.Err != nil {
				cs.Error = o.Err.Error()
			}
			st.Cabinets = append(st.Cabinets, cs)
		}
		if err == nil {
			err = s.Err()
		}
	}
	if err != nil {
		st.Error = err.Error()
	}

	t.mu.Lock()
	t.running = false
	t.runs++
	t.last = st
	t.mu.Unlock()
}

// Last returns the last finished run, or nil before the first one.
func (t *Tracker) Last() *RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last == nil {
		return nil
	}
	cp := *t.last
	cp.Cabinets = append([]CabinetStatus(nil), t.last.Cabinets...)
	return &cp
}

// Health is the /health payload.
type Health struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Running bool   `json:"running"`
	Runs    int    `json:"runs"`
	// LastOK is nil before the first run.
	LastOK *bool `json:"last_ok,omitempty"`
}

// Health summarizes the tracker. Status is "degraded" when the last run had
// any failure.
func (t *Tracker) Health() Health {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h := Health{
		Status:  "ok",
		Uptime:  time.Since(t.started).Round(time.Second).String(),
		Running: t.running,
		Runs:    t.runs,
	}
	if t.last != nil {
		ok := t.last.Error == ""
		h.LastOK = &ok
		if !ok {
			h.Status = "degraded"
		}
	}
	return h
}
