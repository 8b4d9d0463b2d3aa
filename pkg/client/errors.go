package client

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is returned when the turn could not be carried: connection
	// refused, non-success status or a stream that broke mid-way.
	ErrTransport = errors.New("transport error")
	// ErrUpload is returned when an attachment could not be stored. The chat
	// turn referencing it is never submitted.
	ErrUpload = errors.New("upload failed")
	// ErrNotConnected is returned when sending on a socket that is not open.
	ErrNotConnected = errors.New("socket not connected")
)

// StatusError is a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrTransport }
