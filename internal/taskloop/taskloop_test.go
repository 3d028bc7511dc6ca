package taskloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type state struct {
	order []string
}

// fanOut is an async task producing n sync children.
type fanOut struct {
	n       int
	running *atomic.Int32
	peak    *atomic.Int32
}

func (fanOut) Name() string { return "fanOut" }

func (t fanOut) RunAsync(context.Context) ([]Task[state], error) {
	if t.running != nil {
		cur := t.running.Add(1)
		for {
			p := t.peak.Load()
			if cur <= p || t.peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		t.running.Add(-1)
	}
	next := make([]Task[state], t.n)
	for i := range next {
		next[i] = record{name: "child"}
	}
	return next, nil
}

type record struct {
	name string
	next []Task[state]
	err  error
}

func (t record) Name() string { return t.name }

func (t record) RunSync(_ context.Context, s *state) ([]Task[state], error) {
	s.order = append(s.order, t.name)
	return t.next, t.err
}

type failing struct{ err error }

func (failing) Name() string { return "failing" }

func (t failing) RunAsync(context.Context) ([]Task[state], error) { return nil, t.err }

type blocking struct{ started chan<- struct{} }

func (blocking) Name() string { return "blocking" }

func (t blocking) RunAsync(ctx context.Context) ([]Task[state], error) {
	t.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

type neither struct{}

func (neither) Name() string { return "neither" }

func TestRunSyncFollowUpsInOrder(t *testing.T) {
	var s state
	tasks := []Task[state]{
		record{name: "a", next: []Task[state]{record{name: "c"}}},
		record{name: "b"},
	}
	require.NoError(t, Run(context.Background(), &s, tasks))
	assert.Equal(t, []string{"a", "b", "c"}, s.order)
}

func TestRunAsyncFanOut(t *testing.T) {
	var s state
	var running, peak atomic.Int32
	tasks := make([]Task[state], 20)
	for i := range tasks {
		tasks[i] = fanOut{n: 2, running: &running, peak: &peak}
	}

	require.NoError(t, Run(context.Background(), &s, tasks, WithParallelism(3)))
	assert.Len(t, s.order, 40)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunParallelismOne(t *testing.T) {
	var s state
	tasks := []Task[state]{fanOut{n: 1}, fanOut{n: 1}, fanOut{n: 1}}
	require.NoError(t, Run(context.Background(), &s, tasks, WithParallelism(1)))
	assert.Len(t, s.order, 3)
}

func TestRunReturnsSyncFailureUnchanged(t *testing.T) {
	boom := errors.New("boom")
	var s state
	tasks := []Task[state]{
		record{name: "bad", err: boom},
		record{name: "never"},
	}
	err := Run(context.Background(), &s, tasks)
	assert.Same(t, boom, err)
	assert.Equal(t, []string{"bad"}, s.order)
}

func TestRunAsyncFailureCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	started := make(chan struct{}, 1)
	var s state
	tasks := []Task[state]{
		blocking{started: started},
		failing{err: boom},
	}
	err := Run(context.Background(), &s, tasks, WithParallelism(2))
	assert.ErrorIs(t, err, boom)
}

func TestRunHonoursCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)
	go func() {
		<-started
		cancel()
	}()

	var s state
	err := Run(ctx, &s, []Task[state]{blocking{started: started}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsUnknownTaskKind(t *testing.T) {
	var s state
	err := Run(context.Background(), &s, []Task[state]{neither{}})
	assert.ErrorContains(t, err, "neither sync nor async")
}

func TestRunEmpty(t *testing.T) {
	var s state
	assert.NoError(t, Run[state](context.Background(), &s, nil))
}
