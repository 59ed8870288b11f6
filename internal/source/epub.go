package source

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// maxMarkupSize bounds how much of a spine content document is read
// while scanning for image references.
const maxMarkupSize int64 = 10 << 20

// EpubSource reads the images of an EPUB in reading order. The spine
// drives ordering: images appear where the chapter that references
// them appears. EPUBs whose spine references no images at all fall
// back to every manifest image, sorted alphabetically.
type EpubSource struct {
	path    string
	scratch string
	log     *slog.Logger

	zr   *zip.ReadCloser
	list listing

	mu    sync.Mutex
	files map[string]*zip.File // entry ID -> zip file
}

// NewEpub opens the EPUB at p. Extracted images go under scratchDir.
func NewEpub(p, scratchDir string, logger *slog.Logger) (*EpubSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	zr, err := zip.OpenReader(p)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, fmt.Errorf("open %s: %w", p, ErrContainerInvalid)
	}
	return &EpubSource{
		path:    p,
		scratch: scratchDir,
		log:     logger,
		zr:      zr,
		files:   make(map[string]*zip.File),
	}, nil
}

// Entries parses container.xml and the OPF, then collects images in
// spine order: manifest items that are images directly, plus images
// referenced from spine content documents.
func (s *EpubSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return s.list.get(func() ([]PageEntry, error) {
		byName := make(map[string]*zip.File, len(s.zr.File))
		for _, f := range s.zr.File {
			byName[f.Name] = f
		}

		opfPath, err := parseEpubContainer(&s.zr.Reader, s.readEntry)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		opfFile, ok := byName[opfPath]
		if !ok {
			return nil, fmt.Errorf("%s: OPF %s missing: %w", s.path, opfPath, ErrContainerInvalid)
		}
		opfData, err := s.readEntry(opfFile)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}
		pkg, err := parseOPF(opfData)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.path, err)
		}

		itemsByID := make(map[string]opfItem, len(pkg.Manifest.Items))
		for _, item := range pkg.Manifest.Items {
			itemsByID[item.ID] = item
		}

		paths := s.spineImagePaths(pkg, itemsByID, opfPath, byName)
		if len(paths) == 0 {
			paths = manifestImagePaths(pkg, opfPath, byName)
		}

		v := NewValidator()
		var entries []PageEntry
		byID := make(map[string]*zip.File)
		for _, p := range paths {
			f := byName[p]
			if f == nil {
				continue
			}
			ok, err := v.Admit(p, int64(f.UncompressedSize64))
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			e := newEntry(p, int64(f.UncompressedSize64))
			entries = append(entries, e)
			byID[e.ID] = f
		}

		if len(entries) == 0 {
			return nil, fmt.Errorf("%s: %w", s.path, ErrEmptyDocument)
		}
		assignIndices(entries)

		s.mu.Lock()
		s.files = byID
		s.mu.Unlock()

		s.log.Debug("listed epub", "file", filepath.Base(s.path), "pages", len(entries))
		return entries, nil
	})
}

// spineImagePaths walks the spine and returns referenced image paths in
// reading order, deduplicated on first appearance.
func (s *EpubSource) spineImagePaths(pkg *opfPackage, itemsByID map[string]opfItem, opfPath string, byName map[string]*zip.File) []string {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := itemsByID[ref.IDRef]
		if !ok {
			continue
		}
		target := resolveEpubRef(opfPath, item.Href)
		if target == "" {
			continue
		}

		media := strings.ToLower(item.MediaType)
		switch {
		case strings.HasPrefix(media, "image/"):
			add(target)
		case strings.Contains(media, "html"):
			f := byName[target]
			if f == nil {
				continue
			}
			data, err := s.readEntry(f)
			if err != nil {
				s.log.Debug("skipping unreadable spine document", "entry", target, "error", err)
				continue
			}
			for _, ref := range scanMarkupImages(data) {
				add(resolveEpubRef(target, ref))
			}
		}
	}
	return paths
}

// manifestImagePaths is the fallback ordering: every image item in the
// manifest, alphabetical by archive path.
func manifestImagePaths(pkg *opfPackage, opfPath string, byName map[string]*zip.File) []string {
	var paths []string
	for _, item := range pkg.Manifest.Items {
		if !strings.HasPrefix(strings.ToLower(item.MediaType), "image/") {
			continue
		}
		if p := resolveEpubRef(opfPath, item.Href); p != "" && byName[p] != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// Extract decompresses the referenced image to a scratch file.
func (s *EpubSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
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
func (s *EpubSource) Close() error {
	return s.zr.Close()
}

// readEntry reads a zip entry fully, bounded by maxMarkupSize, after
// checking the entry path is safe.
func (s *EpubSource) readEntry(f *zip.File) ([]byte, error) {
	if !safeArchivePath(f.Name) {
		return nil, fmt.Errorf("unsafe entry path %s: %w", f.Name, ErrContainerInvalid)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMarkupSize+1))
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	if int64(len(data)) > maxMarkupSize {
		return nil, fmt.Errorf("entry %s exceeds %d bytes", f.Name, maxMarkupSize)
	}
	return data, nil
}
