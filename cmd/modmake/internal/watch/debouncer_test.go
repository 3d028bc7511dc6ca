package watch

import (
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushes struct {
	mu      sync.Mutex
	batches [][]string
}

func (f *flushes) record(paths []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := slices.Clone(paths)
	slices.Sort(p)
	f.batches = append(f.batches, p)
}

func (f *flushes) get() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.batches)
}

func TestDebouncer_CoalescesEvents(t *testing.T) {
	var f flushes
	d := NewDebouncer(50*time.Millisecond, f.record)
	defer d.Stop()

	d.Add("/src/a.js")
	d.Add("/src/b.js")
	d.Add("/src/a.js")

	require.Eventually(t, func() bool { return len(f.get()) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]string{{"/src/a.js", "/src/b.js"}}, f.get())
}

func TestDebouncer_ResetOnNewEvent(t *testing.T) {
	var f flushes
	d := NewDebouncer(80*time.Millisecond, f.record)
	defer d.Stop()

	d.Add("/src/a.js")
	time.Sleep(30 * time.Millisecond)
	d.Add("/src/b.js")
	time.Sleep(30 * time.Millisecond)
	d.Add("/src/c.js")

	require.Eventually(t, func() bool { return len(f.get()) > 0 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, f.get(), 1)
}

func TestDebouncer_FlushNow(t *testing.T) {
	var f flushes
	d := NewDebouncer(time.Hour, f.record)
	defer d.Stop()

	d.Add("/src/a.js")
	d.Add("/src/b.js")
	d.FlushNow()

	assert.Equal(t, [][]string{{"/src/a.js", "/src/b.js"}}, f.get())
	assert.Zero(t, d.PendingCount())
}

func TestDebouncer_StopFlushesAndIgnoresNewEvents(t *testing.T) {
	var f flushes
	d := NewDebouncer(20*time.Millisecond, f.record)

	d.Add("/src/a.js")
	d.Stop()
	d.Add("/src/b.js")
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, [][]string{{"/src/a.js"}}, f.get())
}

func TestDebouncer_PendingCount(t *testing.T) {
	d := NewDebouncer(time.Hour, func([]string) {})
	defer d.Stop()

	assert.Zero(t, d.PendingCount())
	d.Add("/src/a.js")
	d.Add("/src/b.js")
	d.Add("/src/a.js")
	assert.Equal(t, 2, d.PendingCount())
}

func TestDebouncer_MaxPendingLimit(t *testing.T) {
	var f flushes
	d := NewDebouncer(time.Hour, f.record)
	defer d.Stop()

	for i := 0; i < MaxPendingPaths+10; i++ {
		d.Add(fmt.Sprintf("/src/f%d.js", i))
	}

	batches := f.get()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], MaxPendingPaths)
	assert.Equal(t, 10, d.PendingCount())
}
