package stress

import (
	"sort"
	"sync"
	"time"
)

// Verdict is the run-level judgment of one stress run.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
	// VerdictError means the run never got to send requests, e.g. the
	// server failed to build or start. Distinct from Fail: the server
	// was not exercised, so the threshold never applied.
	VerdictError Verdict = "error"
)

// Counter tracks one dimension of the breakdown.
type Counter struct {
	Total   uint64 `json:"total"`
	Success uint64 `json:"success"`
	Failed  uint64 `json:"failed"`
}

// SuccessRate returns the counter's success percentage.
func (c Counter) SuccessRate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Success) / float64(c.Total) * 100
}

// Statistics accumulates stress run counters. All mutation goes through
// record, which holds the lock; the concurrent-clients mode shares one
// Statistics across workers.
type Statistics struct {
	mu sync.Mutex

	Server     string             `json:"server"`
	Total      uint64             `json:"total_requests"`
	Successful uint64             `json:"successful_requests"`
	Failed     uint64             `json:"failed_requests"`
	PerPattern map[string]Counter `json:"per_pattern"`
	PerClient  map[string]Counter `json:"per_client"`
	ErrorTags  map[string]uint64  `json:"error_tags,omitempty"`

	Duration time.Duration `json:"duration_ns"`
	Verdict  Verdict       `json:"verdict"`
	Message  string        `json:"message,omitempty"`
}

// NewStatistics creates empty statistics for one server.
func NewStatistics(server string) *Statistics {
	return &Statistics{
		Server:     server,
		PerPattern: make(map[string]Counter),
		PerClient:  make(map[string]Counter),
		ErrorTags:  make(map[string]uint64),
	}
}

// record updates all counters for one completed exchange. errorTag is
// empty for successes.
func (s *Statistics) record(patternType, client string, ok bool, errorTag string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Total++
	pp := s.PerPattern[patternType]
	pc := s.PerClient[client]
	pp.Total++
	pc.Total++
	if ok {
		s.Successful++
		pp.Success++
		pc.Success++
	} else {
		s.Failed++
		pp.Failed++
		pc.Failed++
		if errorTag == "" {
			errorTag = "unknown_error"
		}
		s.ErrorTags[errorTag]++
	}
	s.PerPattern[patternType] = pp
	s.PerClient[client] = pc
}

// finish stamps the run duration and judges the verdict under the lock,
// so a straggling worker recording late cannot race the judgment.
func (s *Statistics) finish(duration time.Duration, threshold float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Duration = duration
	successRate := 0.0
	if s.Total > 0 {
		successRate = float64(s.Successful) / float64(s.Total) * 100
	}
	if successRate >= threshold {
		s.Verdict = VerdictPass
	} else {
		s.Verdict = VerdictFail
	}
}

// breakdown returns locked copies of every counter dimension for
// end-of-run reporting.
func (s *Statistics) breakdown() (total, successful, failed uint64, perPattern, perClient map[string]Counter, errorTags map[string]uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perPattern = make(map[string]Counter, len(s.PerPattern))
	for k, v := range s.PerPattern {
		perPattern[k] = v
	}
	perClient = make(map[string]Counter, len(s.PerClient))
	for k, v := range s.PerClient {
		perClient[k] = v
	}
	errorTags = make(map[string]uint64, len(s.ErrorTags))
	for k, v := range s.ErrorTags {
		errorTags[k] = v
	}
	return s.Total, s.Successful, s.Failed, perPattern, perClient, errorTags
}

// SuccessRate returns the overall success percentage.
func (s *Statistics) SuccessRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total) * 100
}

// RequestRate returns the average requests per second over the run.
func (s *Statistics) RequestRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Total) / s.Duration.Seconds()
}

// snapshot returns copies of the counters for progress logging without
// holding the lock during formatting.
func (s *Statistics) snapshot() (total, successful uint64, perPattern, perClient map[string]Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	perPattern = make(map[string]Counter, len(s.PerPattern))
	for k, v := range s.PerPattern {
		perPattern[k] = v
	}
	perClient = make(map[string]Counter, len(s.PerClient))
	for k, v := range s.PerClient {
		perClient[k] = v
	}
	return s.Total, s.Successful, perPattern, perClient
}

// topPatterns returns the n busiest pattern types in descending order.
func topPatterns(perPattern map[string]Counter, n int) []string {
	type entry struct {
		name  string
		total uint64
	}
	entries := make([]entry, 0, len(perPattern))
	for name, c := range perPattern {
		entries = append(entries, entry{name, c.Total})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].total != entries[j].total {
			return entries[i].total > entries[j].total
		}
		return entries[i].name < entries[j].name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}
