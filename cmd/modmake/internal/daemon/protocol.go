// Package daemon keeps a compiler resident behind a Unix socket so that
// successive builds of a project reuse its in-memory build cache.
package daemon

import (
	"fmt"
	"sync/atomic"

	"github.com/goccy/go-json"

	"github.com/albertocavalcante/modmake/internal/compiler"
)

// JSON-RPC 2.0 version string.
const JSONRPCVersion = "2.0"

// JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	// ErrCodeBuildAborted is returned when a compilation aborts before
	// finishing the graph.
	ErrCodeBuildAborted = -32000
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// NewRequest creates a new JSON-RPC request.
func NewRequest(id int64, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: JSONRPCVersion,
		ID:      &id,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

// NewResponse creates a successful JSON-RPC response.
func NewResponse(id *int64, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  data,
	}, nil
}

// NewErrorResponse creates an error JSON-RPC response.
func NewErrorResponse(id *int64, code int, message string) *Response {
	return &Response{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &RPCError{
			Code:    code,
			Message: message,
		},
	}
}

// RPC methods.
const (
	MethodPing            = "ping"
	MethodShutdown        = "shutdown"
	MethodBuildRun        = "build/run"
	MethodCacheInvalidate = "cache/invalidate"
	MethodCacheStats      = "cache/stats"
)

// PingResult is the response to a ping request.
type PingResult struct {
	Pong      bool   `json:"pong"`
	Version   string `json:"version"`
	Context   string `json:"context"`
	Uptime    string `json:"uptime"`
	StartTime string `json:"start_time"`
}

// ShutdownResult is the response to a shutdown request.
type ShutdownResult struct {
	Message string `json:"message"`
}

// BuildRunParams are the parameters for build/run.
type BuildRunParams struct {
	Entries []string `json:"entries"`
	// Changed paths are invalidated before compiling.
	Changed []string `json:"changed,omitempty"`
}

// BuildRunResult is the response to build/run.
type BuildRunResult struct {
	Compilation int64          `json:"compilation"`
	Stats       compiler.Stats `json:"stats"`
	Errors      []string       `json:"errors,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Missing     []string       `json:"missing,omitempty"`
}

// CacheInvalidateParams are the parameters for cache/invalidate.
type CacheInvalidateParams struct {
	Paths []string `json:"paths"`
}

// CacheInvalidateResult is the response to cache/invalidate.
type CacheInvalidateResult struct {
	Invalidated int `json:"invalidated"`
}

// CacheStatsResult is the response to cache/stats.
type CacheStatsResult struct {
	Hits     int64   `json:"hits"`
	Misses   int64   `json:"misses"`
	HitRatio float64 `json:"hit_ratio"`
	Builds   int     `json:"builds"`
}

// IDGenerator generates unique request IDs.
type IDGenerator struct {
	counter atomic.Int64
}

// Next returns the next unique ID.
func (g *IDGenerator) Next() int64 {
	return g.counter.Add(1)
}
