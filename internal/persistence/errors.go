package persistence

import "errors"

var (
	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("persistence: store closed")
	// ErrInvalidNamespace is returned when a namespace is empty.
	ErrInvalidNamespace = errors.New("persistence: invalid namespace")
)
