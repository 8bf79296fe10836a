package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	// ErrVersionMismatch is returned by compare-and-swap writes when the
	// stored version moved since it was read.
	ErrVersionMismatch = errors.New("settings version mismatch")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("repository closed")
)
