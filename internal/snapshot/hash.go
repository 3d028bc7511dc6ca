package snapshot

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Content hashes are xxHash64 sums rendered as 16 lowercase hex digits.

var digests = sync.Pool{
	New: func() any { return xxhash.New() },
}

// HashFile streams the file at path through a pooled digest.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	d := digests.Get().(*xxhash.Digest)
	defer digests.Put(d)
	d.Reset()
	if _, err := io.Copy(d, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return formatSum(d.Sum64()), nil
}

// HashBytes hashes an in-memory source, matching HashFile for equal content.
func HashBytes(data []byte) string {
	return formatSum(xxhash.Sum64(data))
}

func formatSum(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
