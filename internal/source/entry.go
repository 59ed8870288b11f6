package source

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"

	"github.com/maruel/natural"
)

// PageEntry describes one page within an open document. Entries are
// immutable once listed; Index is assigned only after the full listing
// has been filtered and sorted.
type PageEntry struct {
	// ID is a fixed-length, filesystem-safe digest of Path. It is
	// stable across repeated listings of the same document, which makes
	// it usable as a cache key and scratch file name.
	ID string

	// Path is the entry's original path inside the document.
	Path string

	// FileName is the last component of Path.
	FileName string

	// UncompressedSize is the declared or measured byte size.
	UncompressedSize int64

	// Index is the zero-based reading-order position.
	Index int
}

// entryIDLen is the hex length of PageEntry.ID (16 digest bytes).
const entryIDLen = 32

// newEntry builds a PageEntry with Index unset. Callers assign indices
// via assignIndices after sorting.
func newEntry(entryPath string, size int64) PageEntry {
	return PageEntry{
		ID:               EntryID(entryPath),
		Path:             entryPath,
		FileName:         path.Base(entryPath),
		UncompressedSize: size,
	}
}

// EntryID returns the deterministic identifier for an entry path.
func EntryID(entryPath string) string {
	sum := sha256.Sum256([]byte(entryPath))
	return hex.EncodeToString(sum[:entryIDLen/2])
}

// sortEntries orders entries by natural comparison of their paths, so
// "page2.jpg" sorts before "page10.jpg".
func sortEntries(entries []PageEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return natural.Less(entries[i].Path, entries[j].Path)
	})
}

// assignIndices stamps contiguous zero-based indices in slice order.
func assignIndices(entries []PageEntry) {
	for i := range entries {
		entries[i].Index = i
	}
}
