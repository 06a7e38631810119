package domain

import "errors"

// Every failure surfaces as one of these sentinels (possibly wrapped with
// context) so callers can branch with errors.Is instead of matching strings.

// ErrInvalidMetadata is returned when empty metadata is supplied on the
// deterministic creation path.
var ErrInvalidMetadata = errors.New("metadata must not be empty")

// ErrEntryNotFound is returned when an identifier was never allocated.
var ErrEntryNotFound = errors.New("entry not found")

// ErrEntryDestroyed is returned by the metadata read path when the entry has
// been tombstoned. The address read path deliberately does not use it.
var ErrEntryDestroyed = errors.New("entry destroyed")

// ErrAddressOccupied is returned when a deterministic deployment derives an
// address that already holds a live instance (salt reuse).
var ErrAddressOccupied = errors.New("deployment address already occupied")

// ErrDeployFailed is returned when the construction step itself fails for
// reasons opaque to the registry.
var ErrDeployFailed = errors.New("deployment failed")

// ErrUnauthorized is returned when a caller other than the owner invokes a
// gated operation.
var ErrUnauthorized = errors.New("caller is not the owner")
