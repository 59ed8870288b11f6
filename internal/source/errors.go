package source

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by page sources and the factory.
var (
	// ErrContainerInvalid indicates the document container could not be
	// opened or parsed (corrupt zip, malformed PDF, and so on).
	ErrContainerInvalid = errors.New("source: invalid document container")

	// ErrEmptyDocument indicates no qualifying pages survived
	// filtering.
	ErrEmptyDocument = errors.New("source: document contains no pages")

	// ErrRAR5Unsupported indicates the file carries the RAR5 byte
	// signature. RAR5 is never supported, regardless of whether a
	// native archive decoder is compiled in.
	ErrRAR5Unsupported = errors.New("source: RAR5 archives are not supported")

	// ErrSizeLimitExceeded indicates the cumulative uncompressed size
	// of admitted entries crossed the decompression-bomb ceiling. The
	// whole listing is discarded, never partially returned.
	ErrSizeLimitExceeded = errors.New("source: cumulative uncompressed size limit exceeded")
)

// TooManyEntriesError is returned when a listing admits more entries
// than the configured ceiling. Nothing is extracted.
type TooManyEntriesError struct {
	Count int
}

func (e *TooManyEntriesError) Error() string {
	return fmt.Sprintf("source: too many entries: %d (max %d)", e.Count, MaxEntryCount)
}

// UnsupportedFormatError is returned for documents whose format cannot
// be read, either because the extension is unrecognized or because no
// native decoder is compiled in.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("source: unsupported document format %q", e.Ext)
}

// EntryNotFoundError is returned by Extract for an entry that is not
// part of the source's current listing.
type EntryNotFoundError struct {
	Path string
}

func (e *EntryNotFoundError) Error() string {
	return fmt.Sprintf("source: entry not found: %s", e.Path)
}

// ExtractionError wraps an I/O or decoding failure while materializing
// a single entry.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("source: extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
