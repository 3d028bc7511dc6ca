// Package plugin contains the built-in compilation plugins.
package plugin

import (
	"context"
	"sync/atomic"

	"github.com/albertocavalcante/modmake/internal/hooks"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/pkg/module"
)

// Progress counts module builds as they happen and logs each one.
type Progress struct {
	started  atomic.Int64
	built    atomic.Int64
	reused   atomic.Int64
	onUpdate func(ProgressStats)
}

// ProgressStats is a snapshot of a Progress.
type ProgressStats struct {
	Started int64
	Built   int64
	Reused  int64
}

// NewProgress creates a Progress. onUpdate, if not nil, is called after
// every counted event from the goroutine that raised it.
func NewProgress(onUpdate func(ProgressStats)) *Progress {
	return &Progress{onUpdate: onUpdate}
}

func (p *Progress) Name() string { return "ProgressPlugin" }

// Apply taps every compilation hook.
func (p *Progress) Apply(d *hooks.PluginDriver) error {
	logger := log.Component("progress")
	d.Compilation.BuildModule.Tap(p.Name(), func(ctx context.Context, m module.Module) error {
		p.started.Add(1)
		log.Trace(ctx, "building", "module", m.Identifier())
		p.notify()
		return nil
	})
	d.Compilation.SucceedModule.Tap(p.Name(), func(_ context.Context, m module.Module) error {
		n := p.built.Add(1)
		logger.Debug("built", "module", m.Identifier(), "count", n)
		p.notify()
		return nil
	})
	d.Compilation.StillValidModule.Tap(p.Name(), func(_ context.Context, m module.Module) error {
		n := p.reused.Add(1)
		logger.Debug("reused", "module", m.Identifier(), "count", n)
		p.notify()
		return nil
	})
	return nil
}

// Stats returns the current counts.
func (p *Progress) Stats() ProgressStats {
	return ProgressStats{
		Started: p.started.Load(),
		Built:   p.built.Load(),
		Reused:  p.reused.Load(),
	}
}

// Reset zeroes the counts.
func (p *Progress) Reset() {
	p.started.Store(0)
	p.built.Store(0)
	p.reused.Store(0)
}

func (p *Progress) notify() {
	if p.onUpdate != nil {
		p.onUpdate(p.Stats())
	}
}
