// Package source presents heterogeneous paginated documents (zip
// archives, PDFs, folders of images, single images, EPUBs) as one
// uniform abstraction: an ordered list of page entries, any of which
// can be materialized to a readable file on demand.
package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Location points at a materialized page's bytes.
type Location struct {
	// Path is a readable file on the local filesystem.
	Path string

	// Temporary is true when Path is a session-scoped scratch file that
	// the cache owns and may delete. Pass-through sources hand back the
	// original file and set this false.
	Temporary bool
}

// PageSource lists a document's pages and materializes any one page's
// bytes on request. Implementations cache their first successful
// listing for the lifetime of the instance; Extract is idempotent for a
// given entry ID. Sources are safe for concurrent use.
type PageSource interface {
	// Entries returns the document's pages in reading order, with
	// contiguous indices starting at zero.
	Entries(ctx context.Context) ([]PageEntry, error)

	// Extract materializes one page and returns where its bytes live.
	Extract(ctx context.Context, entry PageEntry) (Location, error)

	// Close releases the underlying container. It does not remove
	// scratch files; that is the extraction cache's job.
	Close() error
}

// listing caches the first successful Entries result. Failed listings
// are not cached so a transient error can be retried.
type listing struct {
	mu      sync.Mutex
	entries []PageEntry
}

func (l *listing) get(list func() ([]PageEntry, error)) ([]PageEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries != nil {
		return l.entries, nil
	}
	entries, err := list()
	if err != nil {
		return nil, err
	}
	l.entries = entries
	return entries, nil
}

// invalidate drops the cached listing so the next get re-lists.
func (l *listing) invalidate() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// find locates the cached entry matching id, guarding Extract against
// entries from a different listing.
func (l *listing) find(id string) (PageEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.ID == id {
			return e, true
		}
	}
	return PageEntry{}, false
}

// writeScratch writes r to dir/name atomically: content goes to a
// uniquely named temp file first and is renamed into place, so a
// half-written page can never be observed at the final path. limit
// bounds the bytes copied; exceeding it is an error (the declared
// uncompressed size might be forged).
func writeScratch(dir, name string, r io.Reader, limit int64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	dst := filepath.Join(dir, name)
	tmp := dst + "." + uuid.New().String() + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	written, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write content: %w", err)
	}
	if written > limit {
		os.Remove(tmp)
		return "", fmt.Errorf("content exceeds %d byte limit", limit)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return dst, nil
}

// scratchReady reports whether an idempotent extraction already
// produced dst.
func scratchReady(dst string) bool {
	info, err := os.Stat(dst)
	return err == nil && info.Mode().IsRegular()
}
