package utils

import (
	"io"
	"log/slog"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// MustClose closes c and logs any error.
func MustClose(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("failed to close", "error", err)
	}
}

// CancelOnClose ties a context cancel func to a stream's lifetime.
// The readeck client hands out EPUB exports wrapped in one of these so
// the request context stays alive until the caller finishes reading.
type CancelOnClose struct {
	io.ReadCloser
	Cancel func()
}

func (c *CancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	if c.Cancel != nil {
		c.Cancel()
	}
	return err
}
