package pipeline

import "errors"

// errStaleBaseline signals a supplied baseline that no longer matches the
// stored version. The orchestrator wraps it in a ConflictError carrying the
// entity and id.
var errStaleBaseline = errors.New("stale baseline version")

// CheckAndBump compares a caller-supplied baseline version against the stored
// one and computes the next version. A nil supplied version skips the check:
// the caller has opted out of optimistic concurrency and accepts
// last-writer-wins. A mismatch is never merged, the caller re-reads and
// retries.
func CheckAndBump(existing int64, supplied *int64) (int64, error) {
	if supplied != nil && *supplied != existing {
		return 0, errStaleBaseline
	}
	return existing + 1, nil
}
