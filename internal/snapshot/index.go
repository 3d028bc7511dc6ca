package snapshot

import (
	"slices"
	"time"
)

// IndexVersion is the current version of the index format.
const IndexVersion = 1

// Index is a set of fingerprinted paths.
type Index struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Entries   map[string]*Entry `json:"entries"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version:   IndexVersion,
		UpdatedAt: time.Now(),
		Entries:   make(map[string]*Entry),
	}
}

// Add adds or updates an entry.
func (idx *Index) Add(e *Entry) {
	if idx == nil || e == nil {
		return
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}
	idx.Entries[e.Path] = e
}

// Get retrieves an entry by path.
func (idx *Index) Get(path string) (*Entry, bool) {
	if idx == nil || idx.Entries == nil {
		return nil, false
	}
	e, ok := idx.Entries[path]
	return e, ok
}

// Len returns the number of entries.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.Entries)
}

// Paths returns every path in the index, sorted.
func (idx *Index) Paths() []string {
	if idx == nil {
		return nil
	}
	paths := make([]string, 0, len(idx.Entries))
	for p := range idx.Entries {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Diff compares this index against another, returning changes.
// The receiver is the "old" state, other is the "new" state. Missing
// entries count as absent.
func (idx *Index) Diff(other *Index) *ChangeSet {
	cs := NewChangeSet()

	oldEntries := presentEntries(idx)
	newEntries := presentEntries(other)

	for path, newEntry := range newEntries {
		oldEntry, exists := oldEntries[path]
		if !exists {
			cs.Added = append(cs.Added, path)
			continue
		}
		if oldEntry.ModTime == newEntry.ModTime && oldEntry.Size == newEntry.Size {
			continue
		}
		if oldEntry.Hash != newEntry.Hash {
			cs.Modified = append(cs.Modified, path)
		}
	}

	for path := range oldEntries {
		if _, exists := newEntries[path]; !exists {
			cs.Deleted = append(cs.Deleted, path)
		}
	}

	cs.sort()
	return cs
}

func presentEntries(idx *Index) map[string]*Entry {
	out := make(map[string]*Entry)
	if idx == nil {
		return out
	}
	for p, e := range idx.Entries {
		if !e.Missing {
			out[p] = e
		}
	}
	return out
}
