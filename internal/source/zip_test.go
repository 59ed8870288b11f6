package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestZipSourceEntries(t *testing.T) {
	ctx := context.Background()

	t.Run("filters and natural-sorts", func(t *testing.T) {
		p := writeTestZip(t, "comic.cbz", []zipEntry{
			{"page1.jpg", []byte("a")},
			{"page10.jpg", []byte("b")},
			{"page2.jpg", []byte("c")},
			{"__MACOSX/._page1.jpg", []byte("x")},
			{"notes.txt", []byte("notes")},
		})
		s, err := NewZip(p, t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewZip: %v", err)
		}
		defer s.Close()

		entries, err := s.Entries(ctx)
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		want := []string{"page1.jpg", "page2.jpg", "page10.jpg"}
		if len(entries) != len(want) {
			t.Fatalf("got %d entries, want %d", len(entries), len(want))
		}
		for i, w := range want {
			if entries[i].Path != w {
				t.Errorf("entry %d: got %s, want %s", i, entries[i].Path, w)
			}
			if entries[i].Index != i {
				t.Errorf("entry %d: index = %d", i, entries[i].Index)
			}
		}
	})

	t.Run("drops traversal entries silently", func(t *testing.T) {
		p := writeTestZip(t, "evil.cbz", []zipEntry{
			{"../escape.jpg", []byte("evil")},
			{"page1.jpg", []byte("fine")},
		})
		s, err := NewZip(p, t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewZip: %v", err)
		}
		defer s.Close()

		entries, err := s.Entries(ctx)
		if err != nil {
			t.Fatalf("Entries: %v", err)
		}
		for _, e := range entries {
			if e.Path == "../escape.jpg" {
				t.Error("traversal entry appeared in listing")
			}
		}
		if len(entries) != 1 {
			t.Errorf("got %d entries, want 1", len(entries))
		}
	})

	t.Run("empty after filtering", func(t *testing.T) {
		p := writeTestZip(t, "empty.cbz", []zipEntry{
			{"readme.txt", []byte("no pages here")},
		})
		s, err := NewZip(p, t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewZip: %v", err)
		}
		defer s.Close()

		if _, err := s.Entries(ctx); !errors.Is(err, ErrEmptyDocument) {
			t.Errorf("expected ErrEmptyDocument, got %v", err)
		}
	})

	t.Run("corrupt container", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "broken.cbz")
		if err := os.WriteFile(p, []byte("this is not a zip"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewZip(p, t.TempDir(), nil); !errors.Is(err, ErrContainerInvalid) {
			t.Errorf("expected ErrContainerInvalid, got %v", err)
		}
	})

	t.Run("listing cached across calls", func(t *testing.T) {
		p := writeTestZip(t, "cached.cbz", []zipEntry{{"page1.jpg", []byte("a")}})
		s, err := NewZip(p, t.TempDir(), nil)
		if err != nil {
			t.Fatalf("NewZip: %v", err)
		}
		defer s.Close()

		first, err := s.Entries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		second, err := s.Entries(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if &first[0] != &second[0] {
			t.Error("expected repeated listing to return the cached slice")
		}
	})
}

func TestZipSourceExtract(t *testing.T) {
	ctx := context.Background()
	scratch := t.TempDir()

	p := writeTestZip(t, "comic.cbz", []zipEntry{
		{"page1.jpg", []byte("first page bytes")},
		{"page2.jpg", []byte("second page bytes")},
	})
	s, err := NewZip(p, scratch, nil)
	if err != nil {
		t.Fatalf("NewZip: %v", err)
	}
	defer s.Close()

	entries, err := s.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}

	t.Run("materializes to scratch", func(t *testing.T) {
		loc, err := s.Extract(ctx, entries[0])
		if err != nil {
			t.Fatalf("Extract: %v", err)
		}
		if !loc.Temporary {
			t.Error("zip extraction should be marked temporary")
		}
		data, err := os.ReadFile(loc.Path)
		if err != nil {
			t.Fatalf("read extracted file: %v", err)
		}
		if string(data) != "first page bytes" {
			t.Errorf("extracted content = %q", data)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		first, err := s.Extract(ctx, entries[1])
		if err != nil {
			t.Fatal(err)
		}
		info1, err := os.Stat(first.Path)
		if err != nil {
			t.Fatal(err)
		}

		second, err := s.Extract(ctx, entries[1])
		if err != nil {
			t.Fatal(err)
		}
		if first.Path != second.Path {
			t.Errorf("locations differ: %s vs %s", first.Path, second.Path)
		}
		info2, err := os.Stat(second.Path)
		if err != nil {
			t.Fatal(err)
		}
		if !info1.ModTime().Equal(info2.ModTime()) {
			t.Error("second extract rewrote the scratch file")
		}
	})

	t.Run("unknown entry", func(t *testing.T) {
		bogus := PageEntry{ID: EntryID("nope.jpg"), Path: "nope.jpg"}
		_, err := s.Extract(ctx, bogus)
		var notFound *EntryNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected EntryNotFoundError, got %v", err)
		}
		if notFound.Path != "nope.jpg" {
			t.Errorf("Path = %s", notFound.Path)
		}
	})
}
