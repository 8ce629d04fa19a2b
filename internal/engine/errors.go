package engine

import "errors"

// Collaborator error taxonomy. Clients wrap their failures onto these
// sentinels so the engine can classify without knowing transport details.
// All of them are per-entry: recorded in the run report, never fatal.
var (
	// ErrConnectivity covers network failures and unexpected API responses.
	ErrConnectivity = errors.New("connectivity error")
	// ErrAuth covers rejected credentials (HTTP 401/403).
	ErrAuth = errors.New("authentication error")
	// ErrValidation covers rejected writes, e.g. creating an issue with an
	// empty title.
	ErrValidation = errors.New("validation error")
)
