package download

import (
	"sort"
	"sync"

	"github.com/davidmtr/dropfetch/internal/model"
)

// Summary aggregates the result of a run.
type Summary struct {
	// Total is the number of tasks admitted to the run.
	Total int

	// Succeeded is the number of tasks that fetched a file.
	Succeeded int

	// Skipped counts tasks satisfied by an existing file plus
	// duplicate-identifier no-ops.
	Skipped int

	// Failed is the number of tasks that exhausted their retry budget.
	Failed int

	// Cancelled reports whether the run was interrupted before every
	// task reached a terminal state.
	Cancelled bool
}

// runState is the shared bookkeeping for one run. Every task identifier
// is in exactly one of: unclaimed, completed or failed; the mutex keeps
// transitions atomic with the counter updates.
type runState struct {
	mu        sync.Mutex
	claimed   map[string]bool           // identifier -> admitted to this run
	completed map[string]bool           // identifier -> done (success or skip)
	failed    map[string]*model.Outcome // identifier -> last outcome, exhausted only

	total     int
	succeeded int
	skipped   int
	failedNum int
}

func newRunState() *runState {
	return &runState{
		claimed:   make(map[string]bool),
		completed: make(map[string]bool),
		failed:    make(map[string]*model.Outcome),
	}
}

// claim reserves an identifier for the first task carrying it. Returns
// false for later duplicates, which become no-ops.
func (s *runState) claim(identifier string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[identifier] {
		return false
	}
	s.claimed[identifier] = true
	return true
}

func (s *runState) noteSuccess(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[identifier] = true
	s.succeeded++
}

func (s *runState) noteSkipped(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed[identifier] = true
	s.skipped++
}

func (s *runState) noteExhausted(outcome *model.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[outcome.Task.Identifier] = outcome
	s.failedNum++
}

func (s *runState) counts() (succeeded, skipped, failed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded, s.skipped, s.failedNum, s.total
}

// exhaustedOutcomes returns the terminal failures in manifest order.
func (s *runState) exhaustedOutcomes() []*model.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcomes := make([]*model.Outcome, 0, len(s.failed))
	for _, o := range s.failed {
		outcomes = append(outcomes, o)
	}
	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Task.Row < outcomes[j].Task.Row
	})
	return outcomes
}
