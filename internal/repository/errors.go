// Package repository defines error types that are reused across the
// booking repositories. These sentinel values allow higher layers such as
// the booking service to distinguish between different failure scenarios
// without knowing which storage engine is in use.
package repository

import "errors"

// ErrNotFound is returned when a booking with the requested ID does not
// exist. The service translates this into BOOKING_NOT_FOUND.
var ErrNotFound = errors.New("booking not found")

// ErrConflict is returned when the storage engine itself rejects a write
// because it would double-book a resource (for example the Postgres
// exclusion constraint) or because an insert reuses an existing ID.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
