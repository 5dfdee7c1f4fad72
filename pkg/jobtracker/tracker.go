// Package jobtracker implements a process-local, bounded FIFO tracker for
// the regression test suite's asynchronous run/create/get jobs: a
// capacity-bound queue of job ids plus a status map, both guarded by a
// single lock.
package jobtracker

import "sync"

// Job statuses. Every status except StatusDone is non-terminal (see
// nonTerminal): a job in one of those states is still doing work, so it is
// not evicted to make room for a new one.
const (
	StatusStarted          = "job started"
	StatusCreatedTestcases = "created testcases"
	StatusFetchedTestcases = "fetched testcases"
	StatusDone             = "job done"
)

var nonTerminal = map[string]bool{
	StatusStarted:          true,
	StatusCreatedTestcases: true,
	StatusFetchedTestcases: true,
}

// Entry is one tracked job's current state.
type Entry struct {
	Status  string
	Results interface{}
}

// Tracker is a bounded, FIFO-ordered map of job id to Entry. When a new
// job would push the tracker over capacity, the oldest job is evicted —
// unless it is still running, in which case it is re-enqueued and the new
// job is rejected instead.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	queue   []string
	maxSize int
}

// New builds a Tracker bounded to maxSize concurrently tracked jobs.
func New(maxSize int) *Tracker {
	return &Tracker{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
	}
}

// Start registers a new job as started. It returns false, without
// registering the job, if the tracker is at capacity and the oldest
// tracked job is still running — in that case the oldest job is re-queued
// and the caller should treat this as "queue overload, job terminated".
func (t *Tracker) Start(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = &Entry{Status: StatusStarted}

	if len(t.entries) > t.maxSize {
		oldest := t.queue[0]
		t.queue = t.queue[1:]

		if nonTerminal[t.entries[oldest].Status] {
			t.queue = append(t.queue, oldest)
			delete(t.entries, id)
			return false
		}
		delete(t.entries, oldest)
	}

	t.queue = append(t.queue, id)
	return true
}

// SetStatus updates a tracked job's status. A no-op if id isn't tracked.
func (t *Tracker) SetStatus(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.Status = status
	}
}

// Complete marks a job done and attaches its results.
func (t *Tracker) Complete(id string, results interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[id]; ok {
		e.Status = StatusDone
		e.Results = results
	}
}

// Get returns a copy of a tracked job's current entry.
func (t *Tracker) Get(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}
