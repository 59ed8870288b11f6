package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestImageSource(t *testing.T) {
	ctx := context.Background()

	t.Run("single entry wrapping the file", func(t *testing.T) {
		data := tinyPNG(t)
		p := filepath.Join(t.TempDir(), "cover.png")
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}

		s, err := NewImage(p)
		if err != nil {
			t.Fatalf("NewImage: %v", err)
		}
		defer s.Close()

		entries, err := s.Entries(ctx)
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		if entries[0].Index != 0 {
			t.Errorf("Index = %d", entries[0].Index)
		}
		if entries[0].FileName != "cover.png" {
			t.Errorf("FileName = %s", entries[0].FileName)
		}
		if entries[0].UncompressedSize != int64(len(data)) {
			t.Errorf("UncompressedSize = %d, want %d", entries[0].UncompressedSize, len(data))
		}

		loc, err := s.Extract(ctx, entries[0])
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if loc.Path != p {
			t.Errorf("Path = %s, want original %s", loc.Path, p)
		}
		if loc.Temporary {
			t.Error("pass-through location must not be temporary")
		}
	})

	t.Run("rejects non-image content", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "fake.png")
		if err := os.WriteFile(p, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewImage(p); !errors.Is(err, ErrContainerInvalid) {
			t.Errorf("expected ErrContainerInvalid, got %v", err)
		}
	})
}
