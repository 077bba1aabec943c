package logging

import "sync"

// ProgressSampler rate-limits progress logging to one record per percentage
// step so encoder progress lines do not flood the log file.
type ProgressSampler struct {
	mu       sync.Mutex
	step     float64
	lastSeen map[string]float64
}

// NewProgressSampler creates a sampler emitting at most one record each time
// progress advances by step percent.
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 5
	}
	return &ProgressSampler{step: step, lastSeen: make(map[string]float64)}
}

// ShouldLog reports whether the given progress value for key has advanced
// far enough past the previously logged value.
func (s *ProgressSampler) ShouldLog(key string, percent float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSeen[key]
	if ok && percent < last+s.step && percent < 100 {
		return false
	}
	s.lastSeen[key] = percent
	return true
}
