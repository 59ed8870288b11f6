package source

import (
	"bytes"
	"io"
	"os"
)

// Format identifies a container format by its byte signature.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatPDF
	FormatRAR  // RAR 4.x and earlier
	FormatRAR5 // RAR 5.x, permanently unsupported
	Format7z
	FormatPNG
	FormatJPEG
	FormatGIF
	FormatWebP
	FormatBMP
)

var signatures = []struct {
	format Format
	offset int
	magic  []byte
}{
	// RAR5 must sort before RAR: its signature extends the 4.x one.
	{FormatRAR5, 0, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x01, 0x00}},
	{FormatRAR, 0, []byte{0x52, 0x61, 0x72, 0x21, 0x1A, 0x07, 0x00}},
	{FormatZip, 0, []byte{0x50, 0x4B, 0x03, 0x04}},
	{FormatPDF, 0, []byte("%PDF")},
	{Format7z, 0, []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}},
	{FormatPNG, 0, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{FormatJPEG, 0, []byte{0xFF, 0xD8, 0xFF}},
	{FormatGIF, 0, []byte("GIF8")},
	{FormatBMP, 0, []byte("BM")},
	{FormatWebP, 8, []byte("WEBP")},
}

// sniffLen covers the longest signature including its offset.
const sniffLen = 12

// SniffBytes identifies the container format from a byte prefix.
func SniffBytes(prefix []byte) Format {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(prefix) >= end && bytes.Equal(prefix[sig.offset:end], sig.magic) {
			return sig.format
		}
	}
	return FormatUnknown
}

// Sniff reads the first bytes of the file at p and identifies its
// format. An unreadable or short file sniffs as FormatUnknown.
func Sniff(p string) Format {
	f, err := os.Open(p)
	if err != nil {
		return FormatUnknown
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && n == 0 {
		return FormatUnknown
	}
	return SniffBytes(buf[:n])
}
