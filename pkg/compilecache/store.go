// Package compilecache stores compiled module output keyed by source path
// and content hash, so unchanged files are not recompiled across restarts.
//
// Stores can be layered: a MemoryStore in front of a DiskStore, optionally
// backed by an S3Store shared between instances.
package compilecache

import (
	"context"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrNotFound is returned by Get when no entry exists for a key.
var ErrNotFound = errors.New("compilecache: entry not found")

// Store persists compiled output.
type Store interface {
	// Get returns the stored bytes or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Key names the entry for a source file. It combines a hash of the path
// with the content hash, so an edited file gets a new key and stale entries
// are simply never read again. salt distinguishes compiler configurations.
//
//	9e7bc216430c-ed0feaf9c0fb.cjs
func Key(path string, contentHash uint64, salt string) string {
	h := contentHash
	if salt != "" {
		h ^= xxhash.Sum64String(salt)
	}
	return fmt.Sprintf("%012x-%012x.cjs", xxhash.Sum64String(path)>>16, h>>16)
}

// ContentHash hashes source bytes the way Key expects.
func ContentHash(src []byte) uint64 {
	return xxhash.Sum64(src)
}
