package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertocavalcante/modmake/cmd/modmake/internal/daemon"
	"github.com/albertocavalcante/modmake/internal/compiler"
	"github.com/albertocavalcante/modmake/pkg/config"
)

// runDaemon serves root from an in-process daemon until the test ends.
func runDaemon(t *testing.T, root string) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Build.Context = root
	c, err := compiler.New(cfg)
	require.NoError(t, err)

	srv, err := daemon.NewServer(daemon.ServerConfig{Context: root, Version: "test", Builder: c})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-finished:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error(errors.New("daemon did not stop"))
		}
	})

	select {
	case <-srv.Ready():
	case err := <-finished:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not start")
	}
}

func TestDaemonSubcommands(t *testing.T) {
	cmd := getCommand("daemon")
	require.NotNil(t, cmd)

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["stop"])
	assert.True(t, names["status"])
}

func TestDaemonStatus_NotRunning(t *testing.T) {
	root := t.TempDir()

	out, err := execute(t, "daemon", "status", "-C", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")

	out, err = execute(t, "daemon", "status", "--json", "-C", root)
	require.NoError(t, err)
	var status DaemonStatusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.False(t, status.Running)
	assert.Nil(t, status.Cache)
}

func TestDaemonStop_NotRunning(t *testing.T) {
	out, err := execute(t, "daemon", "stop", "-C", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "Daemon is not running")
}

func TestBuild_Daemon(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "import { a } from './a'\n",
		"a.js":     "export const a = 1\n",
	})
	runDaemon(t, root)

	out, err := execute(t, "build", "--daemon", "-C", root, "./index.js")
	require.NoError(t, err)
	assert.Contains(t, out, "2 modules, 2 dependencies, 0 blocks")
	assert.Contains(t, out, "(0 cached, 2 built)")

	out, err = execute(t, "build", "--daemon", "-C", root, "./index.js")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 cached, 0 built)")

	out, err = execute(t, "daemon", "status", "--json", "-C", root)
	require.NoError(t, err)
	var status DaemonStatusOutput
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.True(t, status.Running)
	assert.Equal(t, "test", status.Version)
	require.NotNil(t, status.Cache)
	assert.Equal(t, 2, status.Cache.Builds)
	assert.Equal(t, int64(2), status.Cache.Hits)
}

func TestBuild_DaemonFallsBack(t *testing.T) {
	root := writeProject(t, map[string]string{
		"index.js": "export default 1\n",
	})

	out, err := execute(t, "build", "--daemon", "-C", root, "./index.js")
	require.NoError(t, err)
	assert.Contains(t, out, "1 modules, 1 dependencies, 0 blocks")
}
