package module

import (
	"sync"
	"time"
)

// Profile records per-module build timings.
type Profile struct {
	mu         sync.Mutex
	buildStart time.Time
	buildEnd   time.Time
}

// NewProfile returns an empty profile.
func NewProfile() *Profile { return &Profile{} }

// MarkBuildingStart records the build start time. Only the first call counts.
func (p *Profile) MarkBuildingStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buildStart.IsZero() {
		p.buildStart = time.Now()
	}
}

// MarkBuildingEnd records the build end time. Only the first call counts.
func (p *Profile) MarkBuildingEnd() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buildEnd.IsZero() {
		p.buildEnd = time.Now()
	}
}

// BuildDuration returns the measured build time, or zero if incomplete.
func (p *Profile) BuildDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buildStart.IsZero() || p.buildEnd.IsZero() {
		return 0
	}
	return p.buildEnd.Sub(p.buildStart)
}
