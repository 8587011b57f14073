package flow

import (
	"sync"
)

// FillerInjector hands out filler phrases in strict round-robin order, up to
// a per-session maximum. Rotation is deterministic so phrase sequences are
// predictable in tests and stable across runs.
type FillerInjector struct {
	mu        sync.Mutex
	phrases   []string
	maxCount  int
	usedCount int
	lastIndex int
}

// NewFillerInjector creates an injector over the given phrases with a cap on
// how many fillers one session may emit
func NewFillerInjector(phrases []string, maxCount int) *FillerInjector {
	if maxCount < 0 {
		maxCount = 0
	}
	return &FillerInjector{
		phrases:   phrases,
		maxCount:  maxCount,
		lastIndex: -1,
	}
}

// Next returns the next phrase in rotation and true, or ("", false) once the
// session cap is exhausted or no phrases are configured
func (f *FillerInjector) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.phrases) == 0 || f.usedCount >= f.maxCount {
		return "", false
	}

	f.lastIndex = (f.lastIndex + 1) % len(f.phrases)
	f.usedCount++
	return f.phrases[f.lastIndex], true
}

// Reset clears the used count and rotation position for a new session
func (f *FillerInjector) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.usedCount = 0
	f.lastIndex = -1
}

// Remaining returns whether the injector can still hand out a phrase
func (f *FillerInjector) Remaining() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.phrases) > 0 && f.usedCount < f.maxCount
}

// Used returns how many fillers have been handed out since the last reset
func (f *FillerInjector) Used() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usedCount
}
