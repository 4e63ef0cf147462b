package curve

import (
	"sync"
	"time"
)

// LogPhaseStore keeps the per-sample log-phase selections behind atomic
// replace semantics. Readers always see a complete selection or none;
// there is no partially written entry.
type LogPhaseStore struct {
	mu     sync.RWMutex
	phases map[string]LogPhaseSelection
}

// NewLogPhaseStore creates an empty store.
func NewLogPhaseStore() *LogPhaseStore {
	return &LogPhaseStore{phases: make(map[string]LogPhaseSelection)}
}

// Get returns the selection for a sample, if any.
func (s *LogPhaseStore) Get(sample string) (LogPhaseSelection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sel, ok := s.phases[sample]
	return sel, ok
}

// SetAuto records an auto-detected selection. A manual selection already in
// place wins unless force is set. It reports whether the store changed.
func (s *LogPhaseStore) SetAuto(sample string, start, end float64, force bool) bool {
	if start >= end {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.phases[sample]; ok && existing.Manual && !force {
		return false
	}
	s.phases[sample] = LogPhaseSelection{
		Sample:    sample,
		Start:     start,
		End:       end,
		CreatedAt: time.Now().UTC(),
		Manual:    false,
	}
	return true
}

// SetManual records a user-specified selection, replacing whatever is there.
func (s *LogPhaseStore) SetManual(sample string, start, end float64) bool {
	if start >= end {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases[sample] = LogPhaseSelection{
		Sample:    sample,
		Start:     start,
		End:       end,
		CreatedAt: time.Now().UTC(),
		Manual:    true,
	}
	return true
}

// Clear removes the selection for a sample.
func (s *LogPhaseStore) Clear(sample string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.phases, sample)
}

// Snapshot returns a copy of all current selections.
func (s *LogPhaseStore) Snapshot() map[string]LogPhaseSelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]LogPhaseSelection, len(s.phases))
	for k, v := range s.phases {
		out[k] = v
	}
	return out
}
