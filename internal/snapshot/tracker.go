package snapshot

import (
	"context"
	"fmt"
)

// Tracker remembers the dependency snapshot of the last successful build
// of a workspace.
type Tracker struct {
	store Store
}

// NewTracker creates a tracker persisting into root/.modmake.
func NewTracker(root string) *Tracker {
	return &Tracker{store: NewJSONStore(root)}
}

// NewTrackerWithStore creates a tracker over an explicit store.
func NewTrackerWithStore(store Store) *Tracker {
	return &Tracker{store: store}
}

// Status reports what changed since the last Refresh without modifying state.
func (t *Tracker) Status(ctx context.Context) (*ChangeSet, error) {
	idx, err := t.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return Check(ctx, idx)
}

// Refresh replaces the stored snapshot with the current state of files and
// missing.
func (t *Tracker) Refresh(ctx context.Context, files, missing []string) error {
	idx, err := Take(ctx, files, missing)
	if err != nil {
		return fmt.Errorf("failed to snapshot dependencies: %w", err)
	}
	if err := t.store.Save(idx); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// HasState returns true if a previous snapshot exists.
func (t *Tracker) HasState() bool {
	return t.store.Exists()
}

// TrackedFileCount returns the number of paths in the stored snapshot.
// Returns 0 if no state exists or on error.
func (t *Tracker) TrackedFileCount() int {
	idx, err := t.store.Load()
	if err != nil {
		return 0
	}
	return idx.Len()
}
