// Package outcome records per-request and per-pair results and rolls
// them up into run-level summaries. The collector is append-only; a
// failed request is a data point, never an abort.
package outcome

import (
	"fmt"
	"sync"
	"time"
)

// Status is the terminal state of one test exchange.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusSkip    Status = "skip"
	StatusError   Status = "error" // harness-side fault, not a protocol failure
	StatusTimeout Status = "timeout"
)

// Outcome is one recorded test result.
type Outcome struct {
	Name      string         `json:"name"`
	Listener  string         `json:"listener,omitempty"`
	Sender    string         `json:"sender,omitempty"`
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PairName renders the conventional "sender -> listener" label.
func PairName(sender, listener, operation string) string {
	return fmt.Sprintf("%s -> %s: %s", sender, listener, operation)
}

// Collector accumulates outcomes from any number of goroutines.
type Collector struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records one outcome, stamping the time if unset.
func (c *Collector) Add(o Outcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, o)
}

// Len returns the number of recorded outcomes.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// All returns a copy of the recorded outcomes in insertion order.
func (c *Collector) All() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Summary is the run-level rollup.
type Summary struct {
	Total       int     `json:"total"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Skipped     int     `json:"skipped"`
	Errors      int     `json:"errors"`
	Timeouts    int     `json:"timeouts"`
	SuccessRate float64 `json:"success_rate"`
}

// Success reports run-level success: nothing failed, errored, or timed
// out. Skips do not count against the run.
func (s Summary) Success() bool {
	return s.Failed == 0 && s.Errors == 0 && s.Timeouts == 0
}

// Summarize computes the rollup. The success rate is taken over the
// executed outcomes; skipped entries are excluded from the denominator.
func (c *Collector) Summarize() Summary {
	var s Summary
	for _, o := range c.All() {
		s.Total++
		switch o.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		case StatusError:
			s.Errors++
		case StatusTimeout:
			s.Timeouts++
		}
	}
	executed := s.Total - s.Skipped
	if executed > 0 {
		s.SuccessRate = float64(s.Passed) / float64(executed) * 100
	}
	return s
}
