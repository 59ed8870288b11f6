// Package session pairs a PageSource with its extraction cache and
// owns both lifetimes: open lists the document, Close releases the
// cache's scratch space and the source together.
package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/quireapp/quire/internal/cache"
	"github.com/quireapp/quire/internal/home"
	"github.com/quireapp/quire/internal/source"
)

// Session is one open reading session over a document.
type Session struct {
	src     source.PageSource
	cache   *cache.Cache
	entries []source.PageEntry
}

// Open routes the document to a source, lists its pages, and binds an
// extraction cache to the document's scratch directory. A listing
// failure aborts the open; no pages are shown for a document that
// cannot be listed.
func Open(ctx context.Context, documentPath string, homeDir *home.Dir, cfg cache.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := homeDir.EnsureExists(); err != nil {
		return nil, err
	}

	scratch := homeDir.DocumentScratchDir(documentPath)
	src, err := source.Open(documentPath, scratch, logger)
	if err != nil {
		return nil, err
	}

	entries, err := src.Entries(ctx)
	if err != nil {
		src.Close()
		return nil, err
	}

	return &Session{
		src:     src,
		cache:   cache.New(src, entries, scratch, cfg, logger),
		entries: entries,
	}, nil
}

// Entries returns the document's pages in reading order.
func (s *Session) Entries() []source.PageEntry {
	return s.entries
}

// PageLocation returns where page i's bytes live, extracting on a miss.
func (s *Session) PageLocation(ctx context.Context, i int) (source.Location, error) {
	return s.cache.PageLocation(ctx, i)
}

// Prefetch makes the pages around i ready and warms the outer window
// in the background.
func (s *Session) Prefetch(ctx context.Context, i int) error {
	return s.cache.Prefetch(ctx, i)
}

// Stats reports cache activity for this session.
func (s *Session) Stats() cache.Stats {
	return s.cache.Stats()
}

// Close ends the session: all scratch files are removed and the source
// is released. Safe to call on every exit path.
func (s *Session) Close() error {
	return errors.Join(s.cache.Clear(), s.src.Close())
}
