// Package apperr models the error taxonomy of §7: a closed set of classified error
// kinds that every component-boundary error is wrapped into, so the supervisor and
// task loops can dispatch recovery behavior with errors.Is instead of string matching.
package apperr

import "errors"

// Sentinel kinds. Wrap the underlying cause with fmt.Errorf("...: %w", Kind) and test
// with errors.Is.
var (
	// Transient covers network timeouts and connection errors; recovery is a local
	// retry after one poll cadence.
	Transient = errors.New("transient network error")

	// RateLimited means the upstream asked us to back off; the poller waits one poll
	// cadence before retrying.
	RateLimited = errors.New("rate limited")

	// NotOnline means the vehicle reported a non-online presence to the fetch
	// endpoint itself (distinct from a snapshot's own presence field); the poller
	// suspends for one cadence and retries.
	NotOnline = errors.New("vehicle not online")

	// RequestTimeout means the fetch call's deadline elapsed; the poller retries
	// after a fixed short delay rather than waiting a full cadence.
	RequestTimeout = errors.New("request timeout")

	// TokenExpired surfaces to the token manager; ingestion resumes after refresh or
	// stops and surfaces through the presenter if refresh fails.
	TokenExpired = errors.New("access token expired")

	// MalformedSnapshot means a required sub-block is missing; the snapshot is
	// dropped. The poller logs every such failure (there is no once-per-kind
	// de-duplication) and waits one cadence.
	MalformedSnapshot = errors.New("malformed vehicle snapshot")

	// NonMonotonicTimestamp means the snapshot's timestamp did not strictly advance;
	// the snapshot is dropped and a warning logged.
	NonMonotonicTimestamp = errors.New("non-monotonic snapshot timestamp")

	// PersistenceFailure covers constraint violations and I/O errors from the store;
	// the batch continues with whatever rows succeeded and does not roll back the
	// in-memory aggregate.
	PersistenceFailure = errors.New("persistence failure")

	// FatalConfig means a required environment variable is missing or unreadable;
	// recovery is process exit with a non-zero status.
	FatalConfig = errors.New("fatal configuration error")

	// EfficiencyUnavailable is returned by the efficiency calculation when no closed
	// ChargingProcess qualifies.
	EfficiencyUnavailable = errors.New("efficiency unavailable")

	// NotFound means a lookup by key (VIN, username, id) matched no row.
	NotFound = errors.New("not found")
)
