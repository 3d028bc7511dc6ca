package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	modtest "github.com/albertocavalcante/modmake/internal/testutil"
	"github.com/albertocavalcante/modmake/pkg/module"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// outputFor returns a compute func reading path and counting calls.
func outputFor(path string, calls *atomic.Int32) ComputeFunc {
	return func(context.Context, module.Module) (*module.BuildOutput, error) {
		calls.Add(1)
		return &module.BuildOutput{
			Result: &module.BuildResult{
				BuildInfo:    module.BuildInfo{Hash: "h", FileDependencies: []string{path}},
				Dependencies: []module.Dependency{modtest.Dep("./b")},
			},
			Diagnostics: []module.Diagnostic{module.Warnf("Note", "kept")},
		}, nil
	}
}

func TestDisabledAlwaysComputes(t *testing.T) {
	var calls atomic.Int32
	m := modtest.NewModule("/src/a.js")
	compute := outputFor("/src/a.js", &calls)

	for range 2 {
		out, valid, err := Disabled{}.UseCache(context.Background(), m, compute)
		require.NoError(t, err)
		assert.False(t, valid)
		assert.NotNil(t, out.Result)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryServesValidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	writeFile(t, path, "export const a = 1")

	c, err := NewMemory(8)
	require.NoError(t, err)
	var calls atomic.Int32
	m := modtest.NewModule(path)

	first, valid, err := c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Equal(t, 1, c.Len())

	second, valid, err := c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, first.Diagnostics, second.Diagnostics)

	// Callers own their copy.
	second.Result.Dependencies = nil
	third, _, err := c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	assert.Len(t, third.Result.Dependencies, 1)
}

func TestMemoryRecomputesAfterChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	writeFile(t, path, "export const a = 1")

	c, err := NewMemory(8)
	require.NoError(t, err)
	var calls atomic.Int32
	m := modtest.NewModule(path)

	_, _, err = c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)

	writeFile(t, path, "export const a = 22")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	_, valid, err := c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryRecomputesWhenMissingPathAppears(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	missing := filepath.Join(dir, "b.js")
	writeFile(t, path, "import './b'")

	c, err := NewMemory(8)
	require.NoError(t, err)
	var calls atomic.Int32
	compute := func(ctx context.Context, m module.Module) (*module.BuildOutput, error) {
		out, err := outputFor(path, &calls)(ctx, m)
		out.Result.BuildInfo.MissingDependencies = []string{missing}
		return out, err
	}
	m := modtest.NewModule(path)

	_, _, err = c.UseCache(context.Background(), m, compute)
	require.NoError(t, err)
	_, valid, err := c.UseCache(context.Background(), m, compute)
	require.NoError(t, err)
	assert.True(t, valid)

	writeFile(t, missing, "export {}")
	_, valid, err = c.UseCache(context.Background(), m, compute)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.EqualValues(t, 2, calls.Load())
}

func TestMemoryDoesNotCacheFailures(t *testing.T) {
	c, err := NewMemory(8)
	require.NoError(t, err)
	boom := errors.New("boom")
	m := modtest.NewModule("/src/a.js")

	_, valid, err := c.UseCache(context.Background(), m, func(context.Context, module.Module) (*module.BuildOutput, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, valid)
	assert.Zero(t, c.Len())
}

func TestMemorySingleComputationPerIdentifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	writeFile(t, path, "export const a = 1")

	c, err := NewMemory(8)
	require.NoError(t, err)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context, m module.Module) (*module.BuildOutput, error) {
		close(started)
		<-release
		return outputFor(path, &calls)(ctx, m)
	}

	type result struct {
		out   *module.BuildOutput
		valid bool
	}
	results := make([]result, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		out, valid, err := c.UseCache(context.Background(), modtest.NewModule(path), compute)
		assert.NoError(t, err)
		results[0] = result{out, valid}
	}()
	<-started
	go func() {
		defer wg.Done()
		out, valid, err := c.UseCache(context.Background(), modtest.NewModule(path), compute)
		assert.NoError(t, err)
		results[1] = result{out, valid}
	}()
	// Give the second caller time to join the in-flight computation.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, results[0].out.Result.BuildInfo, results[1].out.Result.BuildInfo)
	assert.Equal(t, results[0].out.Diagnostics, results[1].out.Diagnostics)
	assert.NotSame(t, results[0].out, results[1].out)
	assert.False(t, results[0].valid)
	assert.True(t, results[1].valid)
}

// A caller whose lookup missed while another build was in flight reaches
// the singleflight key only after that build stored its entry.
func TestMemoryRechecksAfterLateArrival(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	writeFile(t, path, "export const a = 1")

	c, err := NewMemory(8)
	require.NoError(t, err)

	var calls atomic.Int32
	m := modtest.NewModule(path)
	_, valid, err := c.UseCache(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	require.False(t, valid)

	out, valid, err := c.share(context.Background(), m, outputFor(path, &calls))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.EqualValues(t, 1, calls.Load())
	assert.Len(t, out.Result.Dependencies, 1)
}

func TestMemoryConcurrentCallersComputeOnce(t *testing.T) {
	dir := t.TempDir()
	const (
		iterations = 50
		callers    = 16
	)

	for i := range iterations {
		path := filepath.Join(dir, fmt.Sprintf("m%d.js", i))
		writeFile(t, path, "export const a = 1")

		c, err := NewMemory(8)
		require.NoError(t, err)

		var calls, computed atomic.Int32
		start := make(chan struct{})
		var wg sync.WaitGroup
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				_, valid, err := c.UseCache(context.Background(), modtest.NewModule(path), outputFor(path, &calls))
				assert.NoError(t, err)
				if !valid {
					computed.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.EqualValues(t, 1, calls.Load(), "iteration %d", i)
		require.EqualValues(t, 1, computed.Load(), "iteration %d", i)
	}
}

func TestMemoryInvalidate(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.js")
	b := filepath.Join(dir, "b.js")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	c, err := NewMemory(8)
	require.NoError(t, err)
	var calls atomic.Int32
	_, _, err = c.UseCache(context.Background(), modtest.NewModule(a), outputFor(a, &calls))
	require.NoError(t, err)
	_, _, err = c.UseCache(context.Background(), modtest.NewModule(b), outputFor(b, &calls))
	require.NoError(t, err)

	assert.Equal(t, 1, c.Invalidate(a))
	assert.Equal(t, 1, c.Len())

	c.Forget(module.Identifier(b))
	assert.Zero(t, c.Len())

	_, _, err = c.UseCache(context.Background(), modtest.NewModule(b), outputFor(b, &calls))
	require.NoError(t, err)
	c.Purge()
	assert.Zero(t, c.Len())
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	c, err := NewMemory(1)
	require.NoError(t, err)
	var calls atomic.Int32
	for _, name := range []string{"a.js", "b.js"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, name)
		_, _, err := c.UseCache(context.Background(), modtest.NewModule(p), outputFor(p, &calls))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, c.Len())
}

func TestMemoryFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.js")
	writeFile(t, path, "one")

	c, err := NewMemory(0)
	require.NoError(t, err)
	h1, err := c.FileHash(path)
	require.NoError(t, err)

	writeFile(t, path, "two")
	h2, err := c.FileHash(path)
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "hash is memoized until invalidated")

	c.Invalidate(path)
	h3, err := c.FileHash(path)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, err = c.FileHash(filepath.Join(t.TempDir(), "nope.js"))
	assert.Error(t, err)
}

func TestCounter(t *testing.T) {
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "hits"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "misses"})
	c := NewCounter().Export(hits, misses)

	assert.Zero(t, c.Ratio())
	c.Record(true)
	c.Record(true)
	c.Record(false)

	assert.EqualValues(t, 2, c.Hits())
	assert.EqualValues(t, 1, c.Misses())
	assert.InDelta(t, 2.0/3.0, c.Ratio(), 1e-9)
	assert.InDelta(t, 2, counterValue(t, hits), 0)
	assert.InDelta(t, 1, counterValue(t, misses), 0)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
