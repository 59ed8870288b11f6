package source

import (
	"path"
	"strings"
)

// Limits applied to archive-backed listings. These are a compatibility
// surface: tests and callers may rely on the exact values.
const (
	// MaxEntryCount is the maximum number of admitted page entries.
	MaxEntryCount = 2000

	// MaxEntrySize is the per-entry uncompressed size ceiling.
	MaxEntrySize int64 = 100 << 20 // 100 MB

	// MaxTotalSize is the cumulative uncompressed size ceiling across
	// admitted entries. Crossing it aborts the whole listing.
	MaxTotalSize int64 = 2 << 30 // 2 GB
)

// imageExtensions is the whitelist of raster-image extensions admitted
// as pages. Keys are lowercase and include the dot.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// IsImageExtension reports whether ext (with or without leading dot,
// any case) is in the raster-image whitelist.
func IsImageExtension(ext string) bool {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	_, ok := imageExtensions[ext]
	return ok
}

// safeArchivePath reports whether an archive-internal path is safe to
// materialize: relative, and free of parent-directory traversal.
func safeArchivePath(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return false
	}
	// Windows-style absolute paths (C:\...) smuggled into archives.
	if len(p) >= 2 && p[1] == ':' {
		return false
	}
	for _, seg := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return false
		}
	}
	return true
}

// ignoredArchivePath reports whether the entry belongs to platform
// metadata (e.g. __MACOSX), or is a hidden or underscore-prefixed file.
func ignoredArchivePath(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, ".") || strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}

// Validator applies the archive admission rules: path safety, metadata
// filtering, the image-extension whitelist, and the three
// decompression-bomb ceilings. One Validator tracks one listing pass.
type Validator struct {
	MaxEntrySize int64
	MaxTotalSize int64
	MaxEntries   int

	total    int64
	admitted int
}

// NewValidator returns a Validator with the default ceilings.
func NewValidator() *Validator {
	return &Validator{
		MaxEntrySize: MaxEntrySize,
		MaxTotalSize: MaxTotalSize,
		MaxEntries:   MaxEntryCount,
	}
}

// Admit decides whether one archive entry joins the listing.
//
// A false result with a nil error means the entry is silently skipped
// (unsafe path, metadata file, non-image extension, or oversized
// entry). A non-nil error aborts the entire listing: either the
// cumulative size ceiling was crossed (ErrSizeLimitExceeded) or the
// admitted-entry count exceeded the maximum (TooManyEntriesError).
func (v *Validator) Admit(entryPath string, size int64) (bool, error) {
	if !safeArchivePath(entryPath) {
		return false, nil
	}
	if ignoredArchivePath(entryPath) {
		return false, nil
	}
	if _, ok := imageExtensions[strings.ToLower(path.Ext(entryPath))]; !ok {
		return false, nil
	}
	if v.MaxEntrySize > 0 && size > v.MaxEntrySize {
		return false, nil
	}

	v.total += size
	if v.MaxTotalSize > 0 && v.total > v.MaxTotalSize {
		return false, ErrSizeLimitExceeded
	}
	v.admitted++
	if v.MaxEntries > 0 && v.admitted > v.MaxEntries {
		return false, &TooManyEntriesError{Count: v.admitted}
	}
	return true, nil
}
