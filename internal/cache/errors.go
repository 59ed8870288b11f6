package cache

import (
	"errors"
	"fmt"
)

// ErrClosed is returned for operations on a cache whose session has
// already been cleared.
var ErrClosed = errors.New("cache: session closed")

// PageLoadError reports a foreground extraction failure for one page.
// Previously cached pages stay valid; the load can be retried.
type PageLoadError struct {
	Index int
	Err   error
}

func (e *PageLoadError) Error() string {
	return fmt.Sprintf("cache: load page %d: %v", e.Index, e.Err)
}

func (e *PageLoadError) Unwrap() error { return e.Err }
