package store

import "errors"

var (
	// ErrNotFound: no entry exists for the requested content key.
	ErrNotFound = errors.New("object not found")
	// ErrReadPending: the client already has an outstanding read request.
	ErrReadPending = errors.New("read already pending on store client")
	// ErrAborted: the producer aborted the object before completing it.
	ErrAborted = errors.New("object aborted by producer")
	// ErrReleased: the entry was released while the operation was pending.
	ErrReleased = errors.New("object released")
	// ErrCompleted: producer operation on an already-completed object.
	ErrCompleted = errors.New("object already completed")
	// ErrUnavailable: the object is complete but neither memory nor a
	// durable copy can satisfy the requested range.
	ErrUnavailable = errors.New("object data unavailable")
	// ErrStoreClosed: the store's event loop has shut down.
	ErrStoreClosed = errors.New("store closed")
)
