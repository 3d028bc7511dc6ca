// Package snapshot fingerprints the files a build depended on so later
// builds can tell whether a cached result is still valid.
package snapshot

// Entry is one fingerprinted path.
type Entry struct {
	Path    string `json:"path"`
	Hash    string `json:"hash,omitempty"` // xxHash64 hex
	ModTime int64  `json:"mtime_ns"`       // UnixNano
	Size    int64  `json:"size"`
	// Missing marks a path that did not exist when the snapshot was taken.
	Missing bool `json:"missing,omitempty"`
}
