package source

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Raster formats beyond the stdlib trio, registered for
	// image.DecodeConfig. The whitelist admits all of these.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageSource wraps a single image file as a one-page document.
type ImageSource struct {
	path string
	list listing
}

// NewImage creates a source over the image file at p. The file must
// decode as a known raster format; a misnamed or corrupt file fails
// here rather than at display time.
func NewImage(p string) (*ImageSource, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p, ErrContainerInvalid)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", p, ErrContainerInvalid)
	}
	return &ImageSource{path: p}, nil
}

// Entries returns exactly one entry covering the whole file.
func (s *ImageSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return s.list.get(func() ([]PageEntry, error) {
		info, err := os.Stat(s.path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", s.path, ErrContainerInvalid)
		}
		entries := []PageEntry{newEntry(filepath.Base(s.path), info.Size())}
		assignIndices(entries)
		return entries, nil
	})
}

// Extract returns the original file directly; nothing is copied.
func (s *ImageSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
	if _, err := s.Entries(ctx); err != nil {
		return Location{}, err
	}
	if _, ok := s.list.find(entry.ID); !ok {
		return Location{}, &EntryNotFoundError{Path: entry.Path}
	}
	return Location{Path: s.path}, nil
}

// Close is a no-op; the source holds no open handles.
func (s *ImageSource) Close() error { return nil }
