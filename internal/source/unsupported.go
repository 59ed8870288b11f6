package source

import "context"

// UnsupportedSource is the variant returned for formats quire cannot
// read. Every operation fails with UnsupportedFormatError so callers
// get a consistent, retryable error instead of a nil source.
type UnsupportedSource struct {
	ext string
}

// NewUnsupported creates a source that always fails for ext.
func NewUnsupported(ext string) *UnsupportedSource {
	return &UnsupportedSource{ext: ext}
}

func (s *UnsupportedSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return nil, &UnsupportedFormatError{Ext: s.ext}
}

func (s *UnsupportedSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
	return Location{}, &UnsupportedFormatError{Ext: s.ext}
}

func (s *UnsupportedSource) Close() error { return nil }
