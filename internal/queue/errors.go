package queue

import "errors"

var (
	// ErrNotFound indicates the requested job does not exist.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition indicates a status change that the state machine
	// does not permit, including moving upload_status to uploading before the
	// render has succeeded.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidSpec indicates a submission that fails validation.
	ErrInvalidSpec = errors.New("invalid job spec")

	// ErrSchemaMismatch indicates the database schema version doesn't match
	// the version this build expects.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
