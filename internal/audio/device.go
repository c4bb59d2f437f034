package audio

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by Acquire when the input device cannot be opened.
var ErrPermissionDenied = errors.New("microphone access denied")

// Stream is a live capture handle. Chunks is closed once the stream has
// flushed its remaining data after Close, or when the source ends on its own.
type Stream interface {
	Chunks() <-chan []byte
	MimeType() string
	Close() error
}

// Device resolves a permission request into a live Stream or a denial.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}
