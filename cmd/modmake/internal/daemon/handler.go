package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/albertocavalcante/modmake/internal/cache"
	"github.com/albertocavalcante/modmake/internal/compiler"
	"github.com/albertocavalcante/modmake/internal/log"
	"github.com/albertocavalcante/modmake/internal/snapshot"
)

// Builder is the compiler a daemon keeps resident. *compiler.Compiler
// implements it.
type Builder interface {
	Compile(ctx context.Context, entries ...string) (*compiler.Compilation, error)
	Invalidate(paths ...string) int
	Counter() *cache.Counter
}

// Handler handles RPC method calls.
type Handler struct {
	server  *Server
	builder Builder
	tracker *snapshot.Tracker

	// buildMu serializes compilations; they share the resolver and cache.
	buildMu sync.Mutex
	builds  int
}

// NewHandler creates a handler compiling with builder.
func NewHandler(server *Server, builder Builder) *Handler {
	return &Handler{
		server:  server,
		builder: builder,
		tracker: snapshot.NewTracker(server.context),
	}
}

// HandleRequest dispatches a request to the method it names.
func (h *Handler) HandleRequest(ctx context.Context, req *Request) *Response {
	log.Component("daemon").Debug("handling request", "method", req.Method)

	var (
		result any
		err    error
	)
	switch req.Method {
	case MethodPing:
		result = h.ping()
	case MethodShutdown:
		result = ShutdownResult{Message: "daemon shutting down"}
	case MethodBuildRun:
		var params BuildRunParams
		if err := decodeParams(req, &params); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		if len(params.Entries) == 0 {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, compiler.ErrNoEntries.Error())
		}
		result, err = h.build(ctx, params)
	case MethodCacheInvalidate:
		var params CacheInvalidateParams
		if err := decodeParams(req, &params); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result = CacheInvalidateResult{Invalidated: h.builder.Invalidate(params.Paths...)}
	case MethodCacheStats:
		result = h.cacheStats()
	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeBuildAborted, err.Error())
	}
	resp, err := NewResponse(req.ID, result)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, err.Error())
	}
	return resp
}

func decodeParams(req *Request, v any) error {
	if len(req.Params) == 0 {
		return errors.New("missing params")
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func (h *Handler) ping() PingResult {
	return PingResult{
		Pong:      true,
		Version:   h.server.version,
		Context:   h.server.context,
		Uptime:    h.server.Uptime().String(),
		StartTime: h.server.startTime.Format(time.RFC3339),
	}
}

func (h *Handler) build(ctx context.Context, params BuildRunParams) (*BuildRunResult, error) {
	h.buildMu.Lock()
	defer h.buildMu.Unlock()

	if len(params.Changed) > 0 {
		h.builder.Invalidate(params.Changed...)
	}
	comp, err := h.builder.Compile(ctx, params.Entries...)
	if err != nil {
		return nil, err
	}
	h.builds++

	if err := h.tracker.Refresh(ctx, comp.SnapshotPaths(), comp.MissingDependencies); err != nil {
		log.Component("daemon").Warn("failed to update state", "error", err)
	}

	result := &BuildRunResult{
		Compilation: comp.ID,
		Stats:       comp.Stats,
		Missing:     comp.MissingDependencies,
	}
	for _, d := range comp.Errors() {
		result.Errors = append(result.Errors, d.String())
	}
	for _, d := range comp.Warnings() {
		result.Warnings = append(result.Warnings, d.String())
	}
	return result, nil
}

func (h *Handler) cacheStats() CacheStatsResult {
	h.buildMu.Lock()
	builds := h.builds
	h.buildMu.Unlock()

	counter := h.builder.Counter()
	return CacheStatsResult{
		Hits:     counter.Hits(),
		Misses:   counter.Misses(),
		HitRatio: counter.Ratio(),
		Builds:   builds,
	}
}
