package domain

import "fmt"

// ValidationError reports a payload shape violation: an unknown field, a
// missing required field, an enum value outside its domain, or an attempt to
// set a pipeline-generated field. Recoverable by the caller fixing the
// payload.
type ValidationError struct {
	Entity EntityType
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// InvalidSlugError is returned by the normalizer when the canonical form of an
// input does not start with a letter.
type InvalidSlugError struct {
	Input string
}

func (e InvalidSlugError) Error() string {
	return fmt.Sprintf("slug derived from %q must start with a letter", e.Input)
}

// MissingActorError reports a mutation attempted without an authenticated
// actor where one is required for audit stamping.
type MissingActorError struct {
	Entity    EntityType
	Operation Operation
}

func (e MissingActorError) Error() string {
	return fmt.Sprintf("%s %s requires an authenticated actor", e.Operation, e.Entity)
}

// PermissionDeniedError reports an authorization gate failure. It always
// names the entity kind and operation so callers can log and route it.
type PermissionDeniedError struct {
	Entity    EntityType
	Operation Operation
	Reason    string
}

func (e PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s %s: %s", e.Operation, e.Entity, e.Reason)
}

// ConflictError reports an optimistic-concurrency version mismatch. The
// caller is expected to re-read and retry, never to merge.
type ConflictError struct {
	Entity   EntityType
	ID       string
	Expected int64
	Actual   int64
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: expected %d, stored %d", e.Entity, e.ID, e.Expected, e.Actual)
}

// CycleError reports a reparent that would make a requirement its own
// ancestor.
type CycleError struct {
	Node            string
	AttemptedParent string
}

func (e CycleError) Error() string {
	return fmt.Sprintf("reparenting %s under %s would create a cycle", e.Node, e.AttemptedParent)
}

// NotFoundError reports a missing record or referenced parent.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// SideEffectError wraps a failed deferred mutation. It is attached to the
// otherwise-successful primary result as a warning and never raised as the
// operation's error.
type SideEffectError struct {
	Entity    EntityType
	Operation Operation
	Err       error
}

func (e SideEffectError) Error() string {
	return fmt.Sprintf("side effect %s %s failed: %v", e.Operation, e.Entity, e.Err)
}

func (e SideEffectError) Unwrap() error { return e.Err }

// Warning carries a non-fatal side-effect failure alongside a successful
// result.
type Warning struct {
	Entity    EntityType `json:"entity"`
	Operation Operation  `json:"operation"`
	Message   string     `json:"message"`
}
