package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// ZipSource reads pages from a zip-based comic archive (.cbz/.zip).
type ZipSource struct {
	path    string
	scratch string
	log     *slog.Logger

	zr   *zip.ReadCloser
	list listing

	mu    sync.Mutex
	files map[string]*zip.File // entry ID -> zip file, built at list time
}

// NewZip opens the archive at p. Scratch files for extracted pages go
// under scratchDir.
func NewZip(p, scratchDir string, logger *slog.Logger) (*ZipSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	zr, err := zip.OpenReader(p)
	// Insecure entry names are handled by the admission rules, which
	// silently drop them instead of rejecting the whole archive.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open %s: %w", p, ErrContainerInvalid)
	}
	return &ZipSource{
		path:    p,
		scratch: scratchDir,
		log:     logger,
		zr:      zr,
		files:   make(map[string]*zip.File),
	}, nil
}

// Entries enumerates the archive, applies the admission rules, and
// returns image entries in natural path order. The first successful
// listing is cached for the lifetime of the source.
func (s *ZipSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return s.list.get(func() ([]PageEntry, error) {
		v := NewValidator()
		var entries []PageEntry
		byID := make(map[string]*zip.File)

		for _, f := range s.zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			ok, err := v.Admit(f.Name, int64(f.UncompressedSize64))
			if err != nil {
				return nil, err
			}
			if !ok {
				s.log.Debug("skipping archive entry", "archive", filepath.Base(s.path), "entry", f.Name)
				continue
			}
			e := newEntry(f.Name, int64(f.UncompressedSize64))
			entries = append(entries, e)
			byID[e.ID] = f
		}

		if len(entries) == 0 {
			return nil, fmt.Errorf("%s: %w", s.path, ErrEmptyDocument)
		}
		sortEntries(entries)
		assignIndices(entries)

		s.mu.Lock()
		s.files = byID
		s.mu.Unlock()

		s.log.Debug("listed archive", "archive", filepath.Base(s.path), "pages", len(entries))
		return entries, nil
	})
}

// Extract decompresses one entry to a scratch file. Re-extracting an
// entry whose scratch file already exists returns the same location
// without touching the archive again.
func (s *ZipSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
	if _, err := s.Entries(ctx); err != nil {
		return Location{}, err
	}

	s.mu.Lock()
	f, ok := s.files[entry.ID]
	s.mu.Unlock()
	if !ok {
		return Location{}, &EntryNotFoundError{Path: entry.Path}
	}

	dst := filepath.Join(s.scratch, scratchName(entry))
	if scratchReady(dst) {
		return Location{Path: dst, Temporary: true}, nil
	}

	rc, err := f.Open()
	if err != nil {
		return Location{}, &ExtractionError{Path: entry.Path, Err: err}
	}
	defer rc.Close()

	if _, err := writeScratch(s.scratch, scratchName(entry), rc, MaxEntrySize); err != nil {
		return Location{}, &ExtractionError{Path: entry.Path, Err: err}
	}
	return Location{Path: dst, Temporary: true}, nil
}

// Close releases the archive handle.
func (s *ZipSource) Close() error {
	return s.zr.Close()
}

// scratchName is the stable scratch file name for an entry: its ID plus
// the original extension so image decoders can type the content.
func scratchName(entry PageEntry) string {
	return entry.ID + strings.ToLower(path.Ext(entry.Path))
}
