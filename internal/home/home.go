package home

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the quire home directory.
	DefaultDirName = ".quire"

	// ScratchDirName is the subdirectory holding per-document scratch
	// space for extracted pages.
	ScratchDirName = "scratch"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the quire home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.quire).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ScratchPath returns the root of all document scratch directories.
func (d *Dir) ScratchPath() string {
	return filepath.Join(d.path, ScratchDirName)
}

// DocumentScratchDir returns the scratch directory for one document,
// named by a hash of the document's absolute path. Hashing keeps the
// directory name filesystem-safe regardless of the original path's
// length or characters, and deterministic for repeat opens.
func (d *Dir) DocumentScratchDir(documentPath string) string {
	abs, err := filepath.Abs(documentPath)
	if err != nil {
		abs = documentPath
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(d.ScratchPath(), hex.EncodeToString(sum[:16]))
}

// EnsureExists creates the home directory and subdirectories if they
// don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.ScratchPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
