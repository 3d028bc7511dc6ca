package daemon

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotConnected is returned when trying to use a disconnected client.
var ErrNotConnected = errors.New("not connected to daemon")

// ErrDaemonNotRunning is returned when no daemon listens on the socket.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a project's daemon. Calls are serialized.
type Client struct {
	conn    net.Conn
	encoder *json.Encoder
	decoder *json.Decoder
	mu      sync.Mutex
	ids     IDGenerator
}

// Connect connects to the daemon at the given socket path.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
			return nil, ErrDaemonNotRunning
		}
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return &Client{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		decoder: json.NewDecoder(bufio.NewReader(conn)),
	}, nil
}

// ConnectProject connects to the daemon serving the project at root.
func ConnectProject(root string) (*Client, error) {
	return Connect(ProjectPaths(root).Socket)
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// call sends a request and waits for its response.
func (c *Client) call(method string, params, result any) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	req, err := NewRequest(c.ids.Next(), method, params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	var resp Response
	if err := c.decoder.Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrNotConnected
		}
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}
	return nil
}

// Ping checks that the daemon is alive.
func (c *Client) Ping() (*PingResult, error) {
	var result PingResult
	if err := c.call(MethodPing, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown asks the daemon to exit.
func (c *Client) Shutdown() (*ShutdownResult, error) {
	var result ShutdownResult
	if err := c.call(MethodShutdown, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Build compiles entries in the daemon after invalidating changed.
func (c *Client) Build(entries []string, changed ...string) (*BuildRunResult, error) {
	var result BuildRunResult
	if err := c.call(MethodBuildRun, BuildRunParams{Entries: entries, Changed: changed}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Invalidate drops the daemon's cached builds depending on paths.
func (c *Client) Invalidate(paths ...string) (int, error) {
	var result CacheInvalidateResult
	if err := c.call(MethodCacheInvalidate, CacheInvalidateParams{Paths: paths}, &result); err != nil {
		return 0, err
	}
	return result.Invalidated, nil
}

// CacheStats returns the daemon's cumulative cache counters.
func (c *Client) CacheStats() (*CacheStatsResult, error) {
	var result CacheStatsResult
	if err := c.call(MethodCacheStats, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
