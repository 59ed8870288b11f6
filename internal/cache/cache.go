// Package cache turns "give me page N" into bounded, prioritized,
// cancellable extraction work over a bound PageSource. It keeps a small
// working set of materialized pages on disk, prefetches around the
// reading position, and evicts distant pages to stay under a ceiling.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/quireapp/quire/internal/source"
)

// Config tunes the cache. Zero values take the defaults.
type Config struct {
	// ImmediateWindow is the index radius around the current page that
	// must be ready before Prefetch returns.
	ImmediateWindow int

	// BackgroundWindow is the larger radius warmed opportunistically
	// after the immediate window completes.
	BackgroundWindow int

	// MaxConcurrent bounds simultaneous extractions. The background
	// phase uses half this budget.
	MaxConcurrent int

	// MaxCachedPages is the resident-record ceiling that triggers
	// eviction.
	MaxCachedPages int

	// RetryAttempts is how many times a single extraction is tried
	// before it is reported as failed.
	RetryAttempts uint

	// PacingDelay spaces background extraction launches so they do not
	// starve foreground I/O.
	PacingDelay time.Duration
}

// DefaultConfig returns the standard tuning.
func DefaultConfig() Config {
	return Config{
		ImmediateWindow:  2,
		BackgroundWindow: 10,
		MaxConcurrent:    4,
		MaxCachedPages:   25,
		RetryAttempts:    2,
		PacingDelay:      25 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ImmediateWindow <= 0 {
		c.ImmediateWindow = d.ImmediateWindow
	}
	if c.BackgroundWindow <= 0 {
		c.BackgroundWindow = d.BackgroundWindow
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.MaxCachedPages <= 0 {
		c.MaxCachedPages = d.MaxCachedPages
	}
	if c.RetryAttempts == 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.PacingDelay <= 0 {
		c.PacingDelay = d.PacingDelay
	}
	return c
}

// record tracks one materialized page.
type record struct {
	loc        source.Location
	index      int
	lastAccess time.Time
}

// Stats is a point-in-time snapshot of cache activity.
type Stats struct {
	Resident  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache is the extraction cache for one reading session. It does not
// own the PageSource: the session owns both and must keep the source
// alive as long as the cache is in use, then Clear the cache and Close
// the source together.
type Cache struct {
	cfg     Config
	src     source.PageSource
	entries []source.PageEntry
	scratch string
	log     *slog.Logger

	sem *semaphore.Weighted // global extraction slots

	mu       sync.Mutex
	records  map[string]*record
	inflight map[string]chan struct{}
	current  int
	closed   bool
	hits     uint64
	misses   uint64
	evicted  uint64

	bgMu     sync.Mutex
	bgCancel context.CancelFunc
	bgDone   chan struct{}
}

// New binds a cache to a source and its listed entries. scratchDir is
// the document's scratch directory; Clear removes it entirely. The
// scratch directory must be exclusively owned by this cache for the
// lifetime of the session.
func New(src source.PageSource, entries []source.PageEntry, scratchDir string, cfg Config, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Cache{
		cfg:      cfg,
		src:      src,
		entries:  entries,
		scratch:  scratchDir,
		log:      logger,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		records:  make(map[string]*record),
		inflight: make(map[string]chan struct{}),
	}
}

// PageLocation returns where page i's bytes live, extracting on a miss.
// Concurrent requests for the same page share one extraction. A
// failure is reported as a PageLoadError; cached pages stay valid.
func (c *Cache) PageLocation(ctx context.Context, i int) (source.Location, error) {
	if i < 0 || i >= len(c.entries) {
		return source.Location{}, &PageLoadError{Index: i, Err: fmt.Errorf("index out of range [0,%d)", len(c.entries))}
	}
	loc, err := c.fetch(ctx, i)
	if err != nil {
		return source.Location{}, &PageLoadError{Index: i, Err: err}
	}
	return loc, nil
}

// fetch is the shared hit-or-extract path used by PageLocation and both
// prefetch phases.
func (c *Cache) fetch(ctx context.Context, i int) (source.Location, error) {
	entry := c.entries[i]

	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return source.Location{}, ErrClosed
		}
		if rec, ok := c.records[entry.ID]; ok {
			rec.lastAccess = time.Now()
			c.hits++
			loc := rec.loc
			c.mu.Unlock()
			return loc, nil
		}
		if ch, ok := c.inflight[entry.ID]; ok {
			// Someone else is extracting this page. Wait for them to
			// finish and re-check instead of duplicating the work.
			c.mu.Unlock()
			select {
			case <-ch:
				continue
			case <-ctx.Done():
				return source.Location{}, ctx.Err()
			}
		}
		ch := make(chan struct{})
		c.inflight[entry.ID] = ch
		c.misses++
		c.mu.Unlock()

		loc, err := c.extract(ctx, entry)

		c.mu.Lock()
		delete(c.inflight, entry.ID)
		close(ch)
		if err != nil {
			c.mu.Unlock()
			return source.Location{}, err
		}
		if c.closed {
			// Cleared while extracting: drop the scratch file rather
			// than resurrecting state.
			c.mu.Unlock()
			if loc.Temporary {
				os.Remove(loc.Path)
			}
			return source.Location{}, ErrClosed
		}
		c.records[entry.ID] = &record{loc: loc, index: i, lastAccess: time.Now()}
		c.evictLocked(entry.ID)
		c.mu.Unlock()
		return loc, nil
	}
}

// extract runs one bounded, retried extraction against the source.
func (c *Cache) extract(ctx context.Context, entry source.PageEntry) (source.Location, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return source.Location{}, err
	}
	defer c.sem.Release(1)

	return retry.DoWithData(
		func() (source.Location, error) {
			return c.src.Extract(ctx, entry)
		},
		retry.Context(ctx),
		retry.Attempts(c.cfg.RetryAttempts),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// Prefetch makes the pages around index i ready. It cancels any
// background work from a previous call, extracts the immediate window
// before returning, then warms the background window with half the
// concurrency budget, best-effort. Immediate work already in flight for
// an earlier index is left to finish; its result stays cached.
func (c *Cache) Prefetch(ctx context.Context, i int) error {
	c.cancelBackground()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.current = i
	c.mu.Unlock()

	// Immediate phase: current page first, neighbors alternating
	// outward. This ordering decides user-visible latency.
	immediate := c.windowIndices(i, 0, c.cfg.ImmediateWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)
	for _, idx := range immediate {
		g.Go(func() error {
			if _, err := c.fetch(gctx, idx); err != nil {
				return &PageLoadError{Index: idx, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Background phase: detached from the caller's context so it
	// outlives the call, cancelled by the next Prefetch or by Clear.
	background := c.windowIndices(i, c.cfg.ImmediateWindow+1, c.cfg.BackgroundWindow)
	if len(background) == 0 {
		return nil
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.bgMu.Lock()
	if c.bgCancel != nil {
		// A concurrent Prefetch registered between our cancelBackground
		// and here; stop its background phase instead of orphaning it.
		c.bgCancel()
	}
	c.bgCancel = cancel
	c.bgDone = done
	c.bgMu.Unlock()

	go c.runBackground(bgCtx, done, i, background)
	return nil
}

// runBackground warms the outer window. Failures are swallowed: the
// page stays uncached and a later foreground request retries it.
func (c *Cache) runBackground(ctx context.Context, done chan struct{}, center int, indices []int) {
	defer close(done)

	limit := c.cfg.MaxConcurrent / 2
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	pacer := time.NewTimer(0)
	defer pacer.Stop()
	<-pacer.C

	for _, idx := range indices {
		g.Go(func() error {
			if _, err := c.fetch(ctx, idx); err != nil {
				c.log.Debug("background prefetch failed", "page", idx, "error", err)
			}
			return nil
		})

		pacer.Reset(c.cfg.PacingDelay)
		select {
		case <-ctx.Done():
			g.Wait()
			return
		case <-pacer.C:
		}
	}
	g.Wait()
	c.log.Debug("background prefetch complete", "center", center, "pages", len(indices))
}

// cancelBackground stops the running background phase, if any, and
// waits for it to wind down.
func (c *Cache) cancelBackground() {
	c.bgMu.Lock()
	cancel, done := c.bgCancel, c.bgDone
	c.bgCancel, c.bgDone = nil, nil
	c.bgMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// windowIndices returns valid, not-yet-cached indices whose distance
// from center is in [minDist, maxDist], ordered by ascending distance
// with the lower neighbor first.
func (c *Cache) windowIndices(center, minDist, maxDist int) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []int
	add := func(idx int) {
		if idx < 0 || idx >= len(c.entries) {
			return
		}
		if _, ok := c.records[c.entries[idx].ID]; ok {
			return
		}
		out = append(out, idx)
	}

	if minDist == 0 {
		add(center)
		minDist = 1
	}
	for d := minDist; d <= maxDist; d++ {
		add(center - d)
		add(center + d)
	}
	return out
}

// evictLocked enforces the resident ceiling: farthest from the current
// index goes first, oldest access breaking ties. The record named by
// keep is never a victim: it was just inserted for an in-flight request
// whose caller is about to read the location, so deleting it would hand
// back a path to a nonexistent file. Only scratch files are deleted;
// pass-through originals are never touched. Caller holds mu.
func (c *Cache) evictLocked(keep string) {
	over := len(c.records) - c.cfg.MaxCachedPages
	if over <= 0 {
		return
	}

	type victim struct {
		id  string
		rec *record
	}
	candidates := make([]victim, 0, len(c.records))
	for id, rec := range c.records {
		if id == keep {
			continue
		}
		candidates = append(candidates, victim{id: id, rec: rec})
	}
	dist := func(idx int) int {
		d := idx - c.current
		if d < 0 {
			d = -d
		}
		return d
	}
	sort.Slice(candidates, func(a, b int) bool {
		da, db := dist(candidates[a].rec.index), dist(candidates[b].rec.index)
		if da != db {
			return da > db
		}
		return candidates[a].rec.lastAccess.Before(candidates[b].rec.lastAccess)
	})

	for _, v := range candidates[:over] {
		if v.rec.loc.Temporary {
			if err := os.Remove(v.rec.loc.Path); err != nil && !os.IsNotExist(err) {
				c.log.Debug("evict: remove scratch file", "path", v.rec.loc.Path, "error", err)
			}
		}
		delete(c.records, v.id)
		c.evicted++
	}
}

// Clear ends the session: it cancels background work, deletes every
// scratch file including the document's scratch directory, and empties
// all cache state. Further operations fail with ErrClosed. Clear is
// idempotent so error-unwind paths can call it safely.
func (c *Cache) Clear() error {
	c.cancelBackground()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	for id, rec := range c.records {
		if rec.loc.Temporary {
			os.Remove(rec.loc.Path)
		}
		delete(c.records, id)
	}
	if c.scratch != "" {
		if err := os.RemoveAll(c.scratch); err != nil {
			return fmt.Errorf("remove scratch dir: %w", err)
		}
	}
	return nil
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Resident:  len(c.records),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
	}
}
