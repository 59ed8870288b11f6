package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Open routes a filesystem candidate to the PageSource variant that can
// read it. Directories always become folder sources. Files route by
// extension; RAR/7z further consult the byte signature, and the RAR5
// signature is rejected permanently regardless of decoder availability.
// Unrecognized extensions fail before the file content is touched.
func Open(p, scratchDir string, logger *slog.Logger) (PageSource, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", p, ErrContainerInvalid)
	}
	if info.IsDir() {
		return NewFolder(p, logger)
	}

	ext := strings.ToLower(filepath.Ext(p))
	switch {
	case ext == ".zip" || ext == ".cbz":
		return NewZip(p, scratchDir, logger)
	case ext == ".pdf":
		return NewPDF(p, scratchDir, nil, logger)
	case ext == ".epub":
		return NewEpub(p, scratchDir, logger)
	case IsImageExtension(ext):
		return NewImage(p)
	case ext == ".rar" || ext == ".cbr" || ext == ".7z" || ext == ".cb7":
		if Sniff(p) == FormatRAR5 {
			return nil, fmt.Errorf("%s: %w", p, ErrRAR5Unsupported)
		}
		if nativeArchiveOpener != nil {
			return nativeArchiveOpener(p, scratchDir, logger)
		}
		return NewUnsupported(ext), nil
	default:
		return nil, &UnsupportedFormatError{Ext: ext}
	}
}

// CanOpen reports whether some variant could read the candidate at p.
// It sniffs the leading bytes rather than trusting the extension, so a
// zip renamed .cbr still opens and a RAR5 renamed .cbz does not.
func CanOpen(p string) bool {
	info, err := os.Stat(p)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return true
	}

	switch Sniff(p) {
	case FormatZip, FormatPDF, FormatPNG, FormatJPEG, FormatGIF, FormatWebP, FormatBMP:
		return true
	case FormatRAR, Format7z:
		return HasNativeArchive()
	case FormatRAR5:
		return false
	default:
		// TIFF and other whitelisted raster formats without a sniff
		// signature fall back to the extension.
		return IsImageExtension(filepath.Ext(p))
	}
}
