package fast

import "errors"

var (
	// ErrActiveFastExists indicates the user already has an active fast.
	ErrActiveFastExists = errors.New("active fast already exists")
	// ErrFastNotFound indicates the fast is not in the reconciled set.
	ErrFastNotFound = errors.New("fast not found")
	// ErrAlreadyCompleted indicates the fast has already been completed.
	ErrAlreadyCompleted = errors.New("fast already completed")
	// ErrUnknownProtocol indicates the protocol id is not in the catalog.
	ErrUnknownProtocol = errors.New("unknown protocol")
	// ErrInvalidInput indicates invalid fast input.
	ErrInvalidInput = errors.New("invalid fast input")
	// ErrStore wraps failures of the underlying session store.
	ErrStore = errors.New("session store failure")
)
