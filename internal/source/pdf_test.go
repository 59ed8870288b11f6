package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// writeMinimalPDF generates a syntactically valid PDF with n empty
// letter-sized pages, computing the xref table offsets as it goes.
func writeMinimalPDF(t *testing.T, name string, n int) string {
	t.Helper()

	var buf bytes.Buffer
	offsets := make([]int, 0, n+3)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		buf.WriteString(body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}

	obj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	obj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))
	for i := 0; i < n; i++ {
		obj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", 3+i))
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefOffset)

	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// fakeRenderer records render calls and writes a marker file.
type fakeRenderer struct {
	calls atomic.Int32
}

func (r *fakeRenderer) Render(ctx context.Context, pdfPath string, page int, dpi int, dst string) error {
	r.calls.Add(1)
	return os.WriteFile(dst, []byte(fmt.Sprintf("page %d @ %d dpi", page, dpi)), 0o644)
}

func TestPDFSourceEntries(t *testing.T) {
	ctx := context.Background()

	p := writeMinimalPDF(t, "book.pdf", 3)
	s, err := NewPDF(p, t.TempDir(), &fakeRenderer{}, nil)
	if err != nil {
		t.Fatalf("NewPDF: %v", err)
	}
	defer s.Close()

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Index != i {
			t.Errorf("entry %d: index = %d", i, e.Index)
		}
		if e.Path != fmt.Sprintf("page_%04d", i+1) {
			t.Errorf("entry %d: path = %s", i, e.Path)
		}
		if e.UncompressedSize <= 0 {
			t.Errorf("entry %d: size estimate = %d, want > 0", i, e.UncompressedSize)
		}
	}
}

func TestPDFSourceExtract(t *testing.T) {
	ctx := context.Background()

	p := writeMinimalPDF(t, "book.pdf", 2)
	renderer := &fakeRenderer{}
	s, err := NewPDF(p, t.TempDir(), renderer, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatal(err)
	}

	loc, err := s.Extract(ctx, entries[1])
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !loc.Temporary {
		t.Error("rendered page should be marked temporary")
	}
	data, err := os.ReadFile(loc.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "page 2 @ 144 dpi" {
		t.Errorf("rendered marker = %q", data)
	}

	// Idempotent: the second extract must not render again.
	if _, err := s.Extract(ctx, entries[1]); err != nil {
		t.Fatal(err)
	}
	if got := renderer.calls.Load(); got != 1 {
		t.Errorf("render calls = %d, want 1", got)
	}
}

func TestRenderDPI(t *testing.T) {
	t.Run("fixed scale for normal pages", func(t *testing.T) {
		// Letter: 612x792pt -> 11in at 144 DPI = 1584px, under the clamp.
		if got := renderDPI(types.Dim{Width: 612, Height: 792}); got != 144 {
			t.Errorf("dpi = %d, want 144", got)
		}
	})

	t.Run("clamped for oversized pages", func(t *testing.T) {
		// 200in tall page at 144 DPI would be 28800px; the clamp keeps
		// the long edge at maxRenderDim.
		dim := types.Dim{Width: 612, Height: 14400}
		dpi := renderDPI(dim)
		if px := int(dim.Height / 72 * float64(dpi)); px > maxRenderDim {
			t.Errorf("long edge %dpx exceeds clamp %d", px, maxRenderDim)
		}
		if dpi >= 144 {
			t.Errorf("dpi = %d, expected reduction below 144", dpi)
		}
	})

	t.Run("zero dims fall back to fixed scale", func(t *testing.T) {
		if got := renderDPI(types.Dim{}); got != 144 {
			t.Errorf("dpi = %d, want 144", got)
		}
	})
}

func TestEstimateRenderSize(t *testing.T) {
	if got := estimateRenderSize(types.Dim{}); got != 0 {
		t.Errorf("zero dims: size = %d, want 0", got)
	}
	// Letter at 144 DPI: 1224x1584 RGBA.
	want := int64(1224 * 1584 * 4)
	if got := estimateRenderSize(types.Dim{Width: 612, Height: 792}); got != want {
		t.Errorf("size = %d, want %d", got, want)
	}
}
