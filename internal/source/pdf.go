package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const (
	// renderScale is the fixed rasterization scale relative to the
	// PDF's 72 DPI point grid (2.0 -> 144 DPI).
	renderScale = 2.0

	// maxRenderDim clamps the rendered image's largest pixel dimension.
	maxRenderDim = 4096
)

// PageRenderer rasterizes one PDF page to an image file. It exists as
// an interface so tests can substitute a fake for the poppler binary.
type PageRenderer interface {
	Render(ctx context.Context, pdfPath string, page int, dpi int, dst string) error
}

// PDFSource exposes a PDF document's pages as rasterized images.
type PDFSource struct {
	path    string
	scratch string
	log     *slog.Logger
	render  PageRenderer

	list listing

	mu   sync.Mutex
	dims []types.Dim // page media box dimensions in points, by page
}

// NewPDF opens the PDF at p. Rendered pages go under scratchDir. A nil
// renderer selects the default poppler-based one.
func NewPDF(p, scratchDir string, renderer PageRenderer, logger *slog.Logger) (*PDFSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = popplerRenderer{}
	}
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("open %s: %w", p, ErrContainerInvalid)
	}
	return &PDFSource{
		path:    p,
		scratch: scratchDir,
		log:     logger,
		render:  renderer,
	}, nil
}

// Entries returns one entry per document page. Entry sizes are
// estimates derived from the page bounds at the render scale, since the
// real size only exists after rasterization.
func (s *PDFSource) Entries(ctx context.Context) ([]PageEntry, error) {
	return s.list.get(func() ([]PageEntry, error) {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", s.path, ErrContainerInvalid)
		}
		defer f.Close()

		count, err := api.PageCount(f, nil)
		if err != nil {
			return nil, fmt.Errorf("page count for %s: %w", s.path, ErrContainerInvalid)
		}
		if count == 0 {
			return nil, fmt.Errorf("%s: %w", s.path, ErrEmptyDocument)
		}
		if count > MaxEntryCount {
			return nil, &TooManyEntriesError{Count: count}
		}

		if _, err := f.Seek(0, 0); err != nil {
			return nil, fmt.Errorf("seek %s: %w", s.path, ErrContainerInvalid)
		}
		dims, err := api.PageDims(f, nil)
		if err != nil {
			return nil, fmt.Errorf("page dims for %s: %w", s.path, ErrContainerInvalid)
		}

		entries := make([]PageEntry, 0, count)
		for n := 1; n <= count; n++ {
			var dim types.Dim
			if n-1 < len(dims) {
				dim = dims[n-1]
			}
			entries = append(entries, newEntry(pdfPageName(n), estimateRenderSize(dim)))
		}
		assignIndices(entries)

		s.mu.Lock()
		s.dims = dims
		s.mu.Unlock()

		s.log.Debug("listed pdf", "file", filepath.Base(s.path), "pages", count)
		return entries, nil
	})
}

// Extract rasterizes one page to a PNG scratch file at the fixed scale,
// clamped so neither pixel dimension exceeds maxRenderDim.
func (s *PDFSource) Extract(ctx context.Context, entry PageEntry) (Location, error) {
	if _, err := s.Entries(ctx); err != nil {
		return Location{}, err
	}
	cached, ok := s.list.find(entry.ID)
	if !ok {
		return Location{}, &EntryNotFoundError{Path: entry.Path}
	}

	dst := filepath.Join(s.scratch, entry.ID+".png")
	if scratchReady(dst) {
		return Location{Path: dst, Temporary: true}, nil
	}
	if err := os.MkdirAll(s.scratch, 0o755); err != nil {
		return Location{}, &ExtractionError{Path: entry.Path, Err: err}
	}

	page := cached.Index + 1

	s.mu.Lock()
	var dim types.Dim
	if cached.Index < len(s.dims) {
		dim = s.dims[cached.Index]
	}
	s.mu.Unlock()

	if err := s.render.Render(ctx, s.path, page, renderDPI(dim), dst); err != nil {
		return Location{}, &ExtractionError{Path: entry.Path, Err: err}
	}
	return Location{Path: dst, Temporary: true}, nil
}

// Close is a no-op; the file is reopened per operation.
func (s *PDFSource) Close() error { return nil }

func pdfPageName(page int) string {
	return fmt.Sprintf("page_%04d", page)
}

// renderDPI computes the render resolution for a page: the fixed scale
// over the 72 DPI point grid, reduced until the larger pixel dimension
// fits within maxRenderDim.
func renderDPI(dim types.Dim) int {
	dpi := renderScale * 72
	long := dim.Width
	if dim.Height > long {
		long = dim.Height
	}
	if long <= 0 {
		return int(dpi)
	}
	if px := long / 72 * dpi; px > maxRenderDim {
		dpi = maxRenderDim * 72 / long
	}
	if dpi < 1 {
		dpi = 1
	}
	return int(dpi)
}

// estimateRenderSize guesses the rasterized byte size from the page
// bounds (RGBA at the render scale). Listing happens before any
// rendering, so an estimate is the best available number.
func estimateRenderSize(dim types.Dim) int64 {
	dpi := float64(renderDPI(dim))
	w := dim.Width / 72 * dpi
	h := dim.Height / 72 * dpi
	if w <= 0 || h <= 0 {
		return 0
	}
	return int64(w * h * 4)
}

// popplerRenderer shells out to pdftoppm (poppler-utils) to rasterize
// a single page, then moves the result into place.
type popplerRenderer struct{}

func (popplerRenderer) Render(ctx context.Context, pdfPath string, page int, dpi int, dst string) error {
	tmpDir, err := os.MkdirTemp("", "quire-page-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	pageStr := fmt.Sprintf("%d", page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	srcPath := outputPrefix + ".png"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("write page image: %w", err)
	}
	return nil
}
