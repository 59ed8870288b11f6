package source

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// FolderSource treats a directory of image files as a document. Pages
// are the original files; nothing is ever copied.
type FolderSource struct {
	root string
	log  *slog.Logger

	watch   bool
	watcher *fsnotify.Watcher
	done    chan struct{}

	list listing
}

// FolderOption configures a FolderSource.
type FolderOption func(*FolderSource)

// WithWatch makes the source watch its directory and drop the cached
// listing when the contents change, so the next Entries call re-lists.
func WithWatch() FolderOption {
	return func(s *FolderSource) { s.watch = true }
}

// NewFolder creates a source over the directory at root.
func NewFolder(root string, logger *slog.Logger, opts ...FolderOption) (*FolderSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FolderSource{root: root, log: logger}
	for _, opt := range opts {
		opt(s)
	}

	if s.watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(root); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
		s.watcher = w
		s.done = make(chan struct{})
		go s.watchLoop()
	}
	return s, nil
}

func (s *FolderSource) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.log.Debug("folder changed, invalidating listing", "dir", s.root, "event", ev.Op.String())
			s.list.invalidate()
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
		case <-s.done:
			return
		}
	}
}

// Entries walks the directory recursively and returns image files in
// natural order of their relative paths. Hidden and underscore-prefixed
// files and directories are skipped.
func (s *FolderSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return s.list.get(func() ([]PageEntry, error) {
		var entries []PageEntry

		err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if p != s.root && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !IsImageExtension(filepath.Ext(name)) {
				return nil
			}
			rel, err := filepath.Rel(s.root, p)
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			entries = append(entries, newEntry(filepath.ToSlash(rel), info.Size()))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", s.root, ErrContainerInvalid)
		}

		if len(entries) == 0 {
			return nil, fmt.Errorf("%s: %w", s.root, ErrEmptyDocument)
		}
		if len(entries) > MaxEntryCount {
			return nil, &TooManyEntriesError{Count: len(entries)}
		}
		sortEntries(entries)
		assignIndices(entries)
		return entries, nil
	})
}

// Extract returns the original file's location. No copy is made, so the
// location is not marked temporary and is never deleted by the cache.
func (s *FolderSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
	if _, err := s.Entries(ctx); err != nil {
		return Location{}, err
	}
	if _, ok := s.list.find(entry.ID); !ok {
		return Location{}, &EntryNotFoundError{Path: entry.Path}
	}
	return Location{Path: filepath.Join(s.root, filepath.FromSlash(entry.Path))}, nil
}

// Close stops the change watcher, if one was started.
func (s *FolderSource) Close() error {
	if s.watcher != nil {
		close(s.done)
		return s.watcher.Close()
	}
	return nil
}
