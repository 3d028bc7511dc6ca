package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/hashicorp/go-multierror"

	"github.com/albertocavalcante/modmake/pkg/config"
)

const (
	socketName = "daemon.sock"
	pidName    = "daemon.pid"
)

// Paths holds the files of one project's daemon.
type Paths struct {
	Dir    string
	Socket string
	PID    string
}

// ProjectPaths returns the daemon files of the project rooted at root. They
// live next to the build state in the project's .modmake directory.
func ProjectPaths(root string) *Paths {
	dir := filepath.Join(root, config.ConfigDirName)
	return &Paths{
		Dir:    dir,
		Socket: filepath.Join(dir, socketName),
		PID:    filepath.Join(dir, pidName),
	}
}

// EnsureDir creates the daemon directory.
func (p *Paths) EnsureDir() error {
	return os.MkdirAll(p.Dir, 0o700)
}

// WritePID records the current process as the project's daemon.
func (p *Paths) WritePID() error {
	if err := p.EnsureDir(); err != nil {
		return err
	}
	return os.WriteFile(p.PID, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

// ReadPID reads the process ID from the PID file.
func (p *Paths) ReadPID() (int, error) {
	data, err := os.ReadFile(p.PID)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file contents: %w", err)
	}
	return pid, nil
}

// Cleanup removes the PID file and the socket.
func (p *Paths) Cleanup() error {
	var result *multierror.Error
	for _, path := range []string{p.PID, p.Socket} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes for existence.
	return process.Signal(syscall.Signal(0)) == nil
}

// Status describes the daemon of a project.
type Status struct {
	Running    bool   `json:"running"`
	PID        int    `json:"pid,omitempty"`
	SocketPath string `json:"socket"`
	// Stale is set when a PID file names a process that is gone.
	Stale bool `json:"stale,omitempty"`
}

// GetStatus inspects the PID file of paths.
func GetStatus(paths *Paths) *Status {
	status := &Status{SocketPath: paths.Socket}
	pid, err := paths.ReadPID()
	if err != nil {
		return status
	}
	status.PID = pid
	if IsProcessRunning(pid) {
		status.Running = true
	} else {
		status.Stale = true
	}
	return status
}

// CleanupStale removes files left behind by a daemon that is no longer
// running and reports whether anything was removed.
func CleanupStale(paths *Paths) (bool, error) {
	status := GetStatus(paths)
	if status.Running {
		return false, nil
	}
	if !status.Stale {
		if _, err := os.Stat(paths.Socket); err != nil {
			return false, nil
		}
	}
	if err := paths.Cleanup(); err != nil {
		return false, err
	}
	return true, nil
}

// StopProcess asks the process to terminate.
func StopProcess(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", pid, err)
	}
	return process.Signal(syscall.SIGTERM)
}
