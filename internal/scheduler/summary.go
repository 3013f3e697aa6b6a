package scheduler

import (
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Summary describes one completed pass.
type Summary struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Endpoints      int       `json:"endpoints"`
	Up             int       `json:"up"`
	Down           int       `json:"down"`
	Changed        int       `json:"changed"`
	Notified       int       `json:"notified"`
	NotifyFailures int       `json:"notify_failures"`
	StoreFailures  int       `json:"store_failures"`
	Invalid        int       `json:"invalid"`
	Errors         error     `json:"-"`
}

// Err returns the combined per-endpoint errors, nil if there were none.
func (s Summary) Err() error {
	return s.Errors
}

// ErrorMessages lists each per-endpoint error.
func (s Summary) ErrorMessages() []string {
	errs := multierr.Errors(s.Errors)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func (s Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// tally guards a Summary shared by endpoint workers.
type tally struct {
	mu sync.Mutex
	s  Summary
}

func (t *tally) update(fn func(s *Summary)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.s)
}

func (t *tally) fail(err error, fn func(s *Summary)) {
	t.update(func(s *Summary) {
		s.Errors = multierr.Append(s.Errors, err)
		if fn != nil {
			fn(s)
		}
	})
}
