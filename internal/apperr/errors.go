// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	// ErrNotFound means a block or page id did not resolve.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration means a mode parameter is missing. It is a warning, not a failure.
	ErrConfiguration = errors.New("configuration")
	// ErrExecution means the host rejected a query expression.
	ErrExecution = errors.New("query execution")
	// ErrEmptyResult means a query produced no candidates.
	ErrEmptyResult = errors.New("no candidates")
	// ErrInvalidMode means a mode name is not one of the known modes.
	ErrInvalidMode = errors.New("invalid mode")
)
