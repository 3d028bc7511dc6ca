package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Take fingerprints files and the paths in missing. Any path that does not
// exist is recorded as a Missing entry.
func Take(ctx context.Context, files, missing []string) (*Index, error) {
	idx := NewIndex()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := fingerprint(path)
		if err != nil {
			return nil, err
		}
		idx.Add(e)
	}
	for _, path := range missing {
		if _, ok := idx.Get(path); ok {
			continue
		}
		e, err := fingerprint(path)
		if err != nil {
			return nil, err
		}
		idx.Add(e)
	}
	return idx, nil
}

// fingerprint stats and hashes path. A nonexistent path yields a Missing entry.
func fingerprint(path string) (*Entry, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Entry{Path: path, Missing: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return &Entry{Path: path, ModTime: info.ModTime().UnixNano()}, nil
	}
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Path:    path,
		Hash:    hash,
		ModTime: info.ModTime().UnixNano(),
		Size:    info.Size(),
	}, nil
}

// Check compares idx against the current disk state. Files are only hashed
// when their mtime or size moved.
func Check(ctx context.Context, idx *Index) (*ChangeSet, error) {
	cs := NewChangeSet()
	if idx == nil {
		return cs, nil
	}

	for path, old := range idx.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if !old.Missing {
				cs.Deleted = append(cs.Deleted, path)
			}
			continue
		case err != nil:
			// Unreadable counts as modified.
			cs.Modified = append(cs.Modified, path)
			continue
		case old.Missing:
			cs.Added = append(cs.Added, path)
			continue
		}

		if info.IsDir() {
			if info.ModTime().UnixNano() != old.ModTime {
				cs.Modified = append(cs.Modified, path)
			}
			continue
		}

		if info.ModTime().UnixNano() == old.ModTime && info.Size() == old.Size {
			continue
		}

		hash, err := HashFile(path)
		if err != nil || hash != old.Hash {
			cs.Modified = append(cs.Modified, path)
		}
	}

	cs.sort()
	return cs, nil
}
