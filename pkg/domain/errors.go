package domain

import "errors"

// ErrThreadNotFound is returned when a thread ID cannot be found in the store.
var ErrThreadNotFound = errors.New("thread not found")

// ErrUnknownResponder is returned when a name does not map to any responder.
var ErrUnknownResponder = errors.New("unknown responder")

// ErrIllegalTransition is returned when a handoff has no edge in the topology.
var ErrIllegalTransition = errors.New("illegal transition")

// ErrInvalidTopology is returned when a topology fails validation.
var ErrInvalidTopology = errors.New("invalid topology")

// ErrInvalidEvent is returned when an event is missing the fields its type requires.
var ErrInvalidEvent = errors.New("invalid event")

// ErrEmptyUpload is returned when an uploaded attachment has no content.
var ErrEmptyUpload = errors.New("empty upload")

// ErrUploadTooLarge is returned when an uploaded attachment exceeds the size limit.
var ErrUploadTooLarge = errors.New("upload too large")
