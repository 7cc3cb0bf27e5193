package engine

import (
	"sync"
	"time"
)

// ProcessState is the lifetime-of-one-process-call mutable state (§3). It is
// created by the Process Driver, mutated only from the driver's thread of
// control and by executors writing their own result slot, and discarded when
// the call returns.
//
// sectionResults and globalResults are guarded by a mutex because each slot
// is written by a different goroutine (one per in-flight unit); the slot
// itself is single-writer (at most once per (section, dimension) pair per
// run), matching spec.md §5's shared-resource policy.
type ProcessState struct {
	ProcessID string
	StartedAt time.Time
	Metadata  map[string]any

	mu                sync.Mutex
	sections          []Section
	originalSections  []Section
	globalResults     map[string]Result
	sectionResults    map[int]map[string]Result
	sectionDimTotal   int
	sectionDimRemain  map[int]int
	sectionStarted    map[int]bool
	sectionCompleted  map[int]bool
}

// NewProcessState initializes state for a fresh process call. sectionDimCount
// is the number of section-scope dimensions in the catalog, used to know
// when a section's work is complete for onSectionComplete bookkeeping.
func NewProcessState(processID string, sections []Section, metadata map[string]any, sectionDimCount int) *ProcessState {
	original := make([]Section, len(sections))
	copy(original, sections)

	st := &ProcessState{
		ProcessID:        processID,
		StartedAt:        time.Now(),
		Metadata:         metadata,
		sections:         append([]Section{}, sections...),
		originalSections: original,
		globalResults:    make(map[string]Result),
		sectionResults:   make(map[int]map[string]Result),
		sectionDimTotal:  sectionDimCount,
		sectionDimRemain: make(map[int]int),
		sectionStarted:   make(map[int]bool),
		sectionCompleted: make(map[int]bool),
	}
	st.resetSectionSlotsLocked()
	return st
}

func (s *ProcessState) resetSectionSlotsLocked() {
	s.sectionResults = make(map[int]map[string]Result, len(s.sections))
	for i := range s.sections {
		s.sectionResults[i] = make(map[string]Result)
		s.sectionDimRemain[i] = s.sectionDimTotal
	}
}

// Sections returns a copy of the current section vector.
func (s *ProcessState) Sections() []Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Section, len(s.sections))
	copy(out, s.sections)
	return out
}

// OriginalSections returns the immutable section vector captured at start.
func (s *ProcessState) OriginalSections() []Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Section, len(s.originalSections))
	copy(out, s.originalSections)
	return out
}

// ReplaceSections installs a new section vector (called only between
// layers, by the Transform Manager, with no unit executing concurrently)
// and resets per-section result storage.
func (s *ProcessState) ReplaceSections(sections []Section) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = append([]Section{}, sections...)
	s.resetSectionSlotsLocked()
}

// SetGlobalResult writes dim's global result. Caller owns single-writer
// discipline; this only guards the map itself.
func (s *ProcessState) SetGlobalResult(dim string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.globalResults[dim] = r
}

// GetGlobalResult reads dim's global result, if present.
func (s *ProcessState) GetGlobalResult(dim string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.globalResults[dim]
	return r, ok
}

// GlobalResultsSnapshot returns a copy of all recorded global results.
func (s *ProcessState) GlobalResultsSnapshot() map[string]Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Result, len(s.globalResults))
	for k, v := range s.globalResults {
		out[k] = v
	}
	return out
}

// SetSectionResult writes the (i, dim) slot.
func (s *ProcessState) SetSectionResult(i int, dim string, r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sectionResults[i]; !ok {
		s.sectionResults[i] = make(map[string]Result)
	}
	s.sectionResults[i][dim] = r
}

// GetSectionResult reads the (i, dim) slot, if present.
func (s *ProcessState) GetSectionResult(i int, dim string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sectionResults[i]
	if !ok {
		return Result{}, false
	}
	r, ok := m[dim]
	return r, ok
}

// SectionResultsForIndex returns a copy of all results recorded for section i.
func (s *ProcessState) SectionResultsForIndex(i int) map[string]Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Result)
	for k, v := range s.sectionResults[i] {
		out[k] = v
	}
	return out
}

// sectionCount returns the current number of sections.
func (s *ProcessState) sectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sections)
}

// markSectionUnitDone decrements the remaining-dimension counter for section
// i and reports whether this call just brought it to zero (i.e. whether
// onSectionComplete should fire now).
func (s *ProcessState) markSectionUnitDone(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sectionCompleted[i] {
		return false
	}
	s.sectionDimRemain[i]--
	if s.sectionDimRemain[i] <= 0 {
		s.sectionCompleted[i] = true
		return true
	}
	return false
}

// markSectionStarted reports whether this call is the first to start work
// for section i (i.e. whether onSectionStart should fire now).
func (s *ProcessState) markSectionStarted(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sectionStarted[i] {
		return false
	}
	s.sectionStarted[i] = true
	return true
}
