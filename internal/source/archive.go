package source

import "log/slog"

// NativeArchiveOpener builds a PageSource over a RAR or 7z archive.
// One is registered at init time by a build-tagged decoder package;
// without it, those formats route to UnsupportedSource. RAR5 never
// reaches an opener: the factory rejects its signature outright.
type NativeArchiveOpener func(path, scratchDir string, logger *slog.Logger) (PageSource, error)

var nativeArchiveOpener NativeArchiveOpener

// RegisterNativeArchiveOpener installs the compiled-in RAR/7z decoder.
func RegisterNativeArchiveOpener(open NativeArchiveOpener) {
	nativeArchiveOpener = open
}

// HasNativeArchive reports whether a RAR/7z decoder is compiled in.
func HasNativeArchive() bool {
	return nativeArchiveOpener != nil
}
