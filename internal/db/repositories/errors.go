// errors.go defines the sentinel errors returned by the repositories layer.
// Handlers map these to HTTP statuses; repositories wrap driver errors with
// fmt.Errorf("...: %w", err) so the sentinels survive error chains.
package repositories

import "errors"

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateHolder is returned when approving an email that already has
	// a holder record, active or deactivated.
	ErrDuplicateHolder = errors.New("key holder already exists")

	// ErrHolderNotApproved is returned when issuing a key for an email with
	// no active holder record in the matching namespace.
	ErrHolderNotApproved = errors.New("key holder not approved")

	// ErrTokenCollision is returned when key issuance exhausts its retry
	// budget without finding an unused token.
	ErrTokenCollision = errors.New("token collision retries exhausted")
)
