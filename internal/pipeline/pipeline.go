// Package pipeline implements the mutation orchestrator. Every create, read,
// update, and delete flows through Execute, which runs the request through a
// fixed state machine: Validating, Authorizing, BeforeHooks, Persisting,
// AfterHooks, SchedulingEffects. Side effects emitted by after-hooks are
// drained from an explicit FIFO queue and resubmitted through the same path,
// so they receive their own validation, hooks, and authorization.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reqcore/internal/audit"
	"reqcore/internal/closure"
	"reqcore/internal/policy"
	"reqcore/internal/schema"
	"reqcore/pkg/domain"
)

// State identifies where in the lifecycle a request currently is. Failed is
// reachable from every non-terminal state.
type State string

const (
	StateValidating        State = "validating"
	StateAuthorizing       State = "authorizing"
	StateBeforeHooks       State = "before_hooks"
	StatePersisting        State = "persisting"
	StateAfterHooks        State = "after_hooks"
	StateSchedulingEffects State = "scheduling_effects"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Observer receives one callback per completed request. Implementations feed
// metrics registries; a nil observer is valid.
type Observer interface {
	MutationObserved(kind domain.EntityType, op domain.Operation, state State, duration time.Duration)
}

// Pipeline composes the schema registry, policy table, closure index, and
// persistence backend into the single entry point callers use.
type Pipeline struct {
	backend  domain.Backend
	registry *schema.Registry
	policies map[domain.EntityType]policy.Policy
	resolver *policy.Resolver
	closure  *closure.Index
	trail    audit.Trail
	observer Observer
	log      zerolog.Logger

	now   func() time.Time
	newID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTrail attaches an audit trail receiving one Change per persisted
// mutation.
func WithTrail(trail audit.Trail) Option {
	return func(p *Pipeline) { p.trail = trail }
}

// WithObserver attaches a metrics observer.
func WithObserver(obs Observer) Option {
	return func(p *Pipeline) { p.observer = obs }
}

// WithLogger replaces the default no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithClock overrides the time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator overrides record id generation. Test seam.
func WithIDGenerator(gen func() string) Option {
	return func(p *Pipeline) { p.newID = gen }
}

// New builds a pipeline over the given backend with the default schema
// registry and policy table.
func New(backend domain.Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend:  backend,
		registry: schema.Default(),
		policies: policy.ForKind(),
		resolver: policy.NewResolver(backend),
		closure:  closure.New(),
		log:      zerolog.Nop(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result pairs a successful record with any side-effect warnings collected
// while draining the effect queue.
type Result struct {
	Record   domain.Row       `json:"record"`
	Warnings []domain.Warning `json:"warnings,omitempty"`
}

// Execute runs one mutation to completion, including every side effect it
// transitively schedules. The returned warnings describe side-effect failures
// only; the primary record is authoritative whenever the error is nil. A nil
// baseline skips the optimistic-concurrency check, deliberately degrading to
// last-writer-wins for callers that opt out.
func (p *Pipeline) Execute(ctx context.Context, actor domain.Actor, kind domain.EntityType, op domain.Operation, payload domain.Row, baseline *int64) (Result, error) {
	started := p.now()
	queue := &effectQueue{}
	record, err := p.run(ctx, actor, request{kind: kind, op: op, payload: payload, baseline: baseline}, queue)
	if err != nil {
		p.observe(kind, op, StateFailed, p.now().Sub(started))
		return Result{}, err
	}

	// The primary mutation is durable from here on. Side effects run on a
	// context that survives caller cancellation so dependent rows do not
	// desynchronize from an already-persisted record.
	warnings := p.drain(context.WithoutCancel(ctx), actor, queue)
	p.observe(kind, op, StateDone, p.now().Sub(started))
	return Result{Record: record, Warnings: warnings}, nil
}

// request is one unit of work flowing through the state machine, either the
// caller's primary mutation or a scheduled effect.
type request struct {
	kind     domain.EntityType
	op       domain.Operation
	payload  domain.Row
	baseline *int64
	system   bool
}

func (p *Pipeline) run(ctx context.Context, actor domain.Actor, req request, queue *effectQueue) (domain.Row, error) {
	switch req.op {
	case domain.OpCreate:
		return p.runInsert(ctx, actor, req, queue)
	case domain.OpRead:
		return p.runRead(ctx, actor, req)
	case domain.OpUpdate:
		return p.runUpdate(ctx, actor, req, queue)
	case domain.OpDelete:
		return p.runDelete(ctx, actor, req, queue)
	default:
		return nil, domain.ValidationError{Entity: req.kind, Reason: "unsupported operation " + string(req.op)}
	}
}

func (p *Pipeline) runInsert(ctx context.Context, actor domain.Actor, req request, queue *effectQueue) (domain.Row, error) {
	if err := p.registry.ValidateCreate(req.kind, req.payload); err != nil {
		return nil, err
	}

	if !req.system {
		chain, err := p.insertChain(ctx, req.kind, req.payload)
		if err != nil {
			return nil, err
		}
		if d := p.policies[req.kind].CanInsert(actor, req.payload, chain); !d.Allowed {
			return nil, domain.PermissionDeniedError{Entity: req.kind, Operation: req.op, Reason: d.Reason}
		}
	}
	if actor.Anonymous() {
		// Only reachable on policy-bypassed system effects; stamping still
		// needs an identity.
		return nil, domain.MissingActorError{Entity: req.kind, Operation: req.op}
	}

	row := p.stampInsert(actor, req.payload)
	if err := p.beforeInsert(ctx, req.kind, row); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Not yet persisted, safe to drop.
		return nil, err
	}

	stored, err := p.backend.Insert(ctx, req.kind.Table(), row)
	if err != nil {
		return nil, err
	}
	p.record(req.kind, domain.ActionCreate, actor, nil, stored)
	p.afterInsert(req.kind, actor, stored, queue)
	return stored, nil
}

func (p *Pipeline) runRead(ctx context.Context, actor domain.Actor, req request) (domain.Row, error) {
	id := domain.RowString(req.payload, "id")
	if id == "" {
		return nil, domain.ValidationError{Entity: req.kind, Field: "id", Reason: "required for read"}
	}
	stored, err := p.backend.Get(ctx, req.kind.Table(), id)
	if err != nil {
		return nil, err
	}
	chain, err := p.resolver.Resolve(ctx, req.kind, stored)
	if err != nil {
		return nil, err
	}
	if d := p.policies[req.kind].CanSelect(actor, stored, chain); !d.Allowed {
		return nil, domain.PermissionDeniedError{Entity: req.kind, Operation: req.op, Reason: d.Reason}
	}
	return stored, nil
}

func (p *Pipeline) runUpdate(ctx context.Context, actor domain.Actor, req request, queue *effectQueue) (domain.Row, error) {
	id := domain.RowString(req.payload, "id")
	if id == "" {
		return nil, domain.ValidationError{Entity: req.kind, Field: "id", Reason: "required for update"}
	}
	patch := domain.CloneRow(req.payload)
	delete(patch, "id")
	if err := p.registry.ValidateUpdate(req.kind, patch); err != nil {
		return nil, err
	}

	existing, err := p.backend.Get(ctx, req.kind.Table(), id)
	if err != nil {
		return nil, err
	}
	chain, err := p.resolver.Resolve(ctx, req.kind, existing)
	if err != nil {
		return nil, err
	}
	if d := p.policies[req.kind].CanUpdate(actor, existing, patch, chain); !d.Allowed {
		return nil, domain.PermissionDeniedError{Entity: req.kind, Operation: req.op, Reason: d.Reason}
	}
	if actor.Anonymous() {
		return nil, domain.MissingActorError{Entity: req.kind, Operation: req.op}
	}

	next, err := CheckAndBump(domain.RowVersion(existing), req.baseline)
	if err != nil {
		return nil, domain.ConflictError{Entity: req.kind, ID: id, Expected: *req.baseline, Actual: domain.RowVersion(existing)}
	}
	p.stampUpdate(actor, patch, next)
	if err := p.beforeUpdate(ctx, req.kind, existing, patch); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored, err := p.backend.Update(ctx, req.kind.Table(), id, patch, req.baseline)
	if err != nil {
		return nil, err
	}
	p.record(req.kind, domain.ActionUpdate, actor, existing, stored)
	p.afterUpdate(req.kind, actor, existing, stored, queue)
	return stored, nil
}

func (p *Pipeline) runDelete(ctx context.Context, actor domain.Actor, req request, queue *effectQueue) (domain.Row, error) {
	id := domain.RowString(req.payload, "id")
	if id == "" {
		return nil, domain.ValidationError{Entity: req.kind, Field: "id", Reason: "required for delete"}
	}
	existing, err := p.backend.Get(ctx, req.kind.Table(), id)
	if err != nil {
		return nil, err
	}
	chain, err := p.resolver.Resolve(ctx, req.kind, existing)
	if err != nil {
		return nil, err
	}
	if d := p.policies[req.kind].CanDelete(actor, existing, chain); !d.Allowed {
		return nil, domain.PermissionDeniedError{Entity: req.kind, Operation: req.op, Reason: d.Reason}
	}
	if actor.Anonymous() {
		return nil, domain.MissingActorError{Entity: req.kind, Operation: req.op}
	}
	if domain.RowBool(existing, "is_deleted") {
		// Deleting twice is a no-op, not an error, so cascades can retry.
		return existing, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	patch := p.stampDelete(actor, domain.RowVersion(existing))
	stored, err := p.backend.Delete(ctx, req.kind.Table(), id, patch)
	if err != nil {
		return nil, err
	}
	p.record(req.kind, domain.ActionDelete, actor, existing, stored)
	if err := p.afterDelete(ctx, req.kind, stored, queue); err != nil {
		// Cascade planning failed; the root delete stands, the failure
		// surfaces as a warning through the queue drain.
		queue.fail(req.kind, domain.OpDelete, err)
	}
	return stored, nil
}

// insertChain resolves the ownership chain an insert payload will live under.
// Organizations have no chain before they exist.
func (p *Pipeline) insertChain(ctx context.Context, kind domain.EntityType, payload domain.Row) (policy.Chain, error) {
	if kind == domain.EntityOrganization {
		return policy.Chain{}, nil
	}
	return p.resolver.Resolve(ctx, kind, payload)
}

// record appends a change to the audit trail, if one is attached.
func (p *Pipeline) record(kind domain.EntityType, action domain.Action, actor domain.Actor, before, after domain.Row) {
	if p.trail == nil {
		return
	}
	change := domain.Change{
		Entity:     kind,
		Action:     action,
		EntityID:   domain.RowString(after, "id"),
		Actor:      actor.ID,
		OccurredAt: p.now().UTC(),
	}
	if before != nil {
		if payload, err := domain.NewChangePayloadFromRow(before); err == nil {
			change.Before = payload
		}
	}
	if after != nil {
		if payload, err := domain.NewChangePayloadFromRow(after); err == nil {
			change.After = payload
		}
	}
	if err := p.trail.Record(change); err != nil {
		p.log.Warn().Err(err).Str("entity", string(kind)).Str("action", string(action)).Msg("audit trail write failed")
	}
}

func (p *Pipeline) observe(kind domain.EntityType, op domain.Operation, state State, d time.Duration) {
	if p.observer != nil {
		p.observer.MutationObserved(kind, op, state, d)
	}
}

// Closure exposes the ancestry index for read paths (descendant listings,
// ancestry checks). Mutations go through Execute only.
func (p *Pipeline) Closure() *closure.Index {
	return p.closure
}
