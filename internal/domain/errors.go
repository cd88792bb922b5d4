package domain

import "errors"

// Error taxonomy shared by all components. Low-level failures are wrapped
// with fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrInvalidInput is returned for malformed addresses or arguments.
	// It is the only error surfaced synchronously by service entry points.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is an authoritative negative from the upstream
	// (token does not exist, no history endpoint). Cacheable.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamUnavailable covers network and HTTP failures.
	// Recoverable via the fallback chain or a stale cache entry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrParse is a malformed response payload. Swallowed at component
	// boundaries; a bad record contributes a zero/placeholder value.
	ErrParse = errors.New("parse error")

	// ErrRestricted means a metadata host refused the request
	// (401/403/451 or an origin-policy rejection). Produces a labeled
	// placeholder record rather than an error.
	ErrRestricted = errors.New("metadata restricted")
)
