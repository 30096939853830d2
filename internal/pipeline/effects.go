package pipeline

import (
	"context"

	"reqcore/pkg/domain"
)

// effect is one deferred unit of work emitted by an after-hook. It is either
// a mutation resubmitted through the orchestrator or a closure index
// operation; exactly one variant is set. Using an explicit queue instead of
// recursive calls bounds stack depth and makes ordering auditable.
type effect struct {
	kind    domain.EntityType
	op      domain.Operation
	payload domain.Row
	system  bool
	closure *closureOp
}

type closureAction int

const (
	closureInsert closureAction = iota
	closureReparent
	closureRemove
)

type closureOp struct {
	action closureAction
	node   string
	parent string
}

// failedEffect is one planning failure awaiting conversion to a logged
// warning.
type failedEffect struct {
	kind domain.EntityType
	op   domain.Operation
	err  error
}

// effectQueue is a FIFO work list. Effects scheduled while draining append to
// the tail, so a chain like profile -> personal organization -> owner
// membership executes in emission order.
type effectQueue struct {
	items    []effect
	failures []failedEffect
}

func (q *effectQueue) push(e effect) {
	q.items = append(q.items, e)
}

func (q *effectQueue) pop() (effect, bool) {
	if len(q.items) == 0 {
		return effect{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// fail records a planning failure that must surface as a warning without
// having reached the queue.
func (q *effectQueue) fail(kind domain.EntityType, op domain.Operation, err error) {
	q.failures = append(q.failures, failedEffect{kind: kind, op: op, err: err})
}

// drain executes queued effects sequentially and in the order emitted. Each
// failure becomes a SideEffectError logged with full context and attached to
// the result as a warning; it never aborts the drain and never becomes the
// operation's error.
func (p *Pipeline) drain(ctx context.Context, actor domain.Actor, queue *effectQueue) []domain.Warning {
	var warnings []domain.Warning
	for {
		eff, ok := queue.pop()
		if !ok {
			break
		}
		if eff.closure != nil {
			if err := p.applyClosure(ctx, eff.closure); err != nil {
				warnings = append(warnings, p.warn(domain.EntityRequirement, domain.OpUpdate, err))
			}
			continue
		}
		if _, err := p.run(ctx, actor, request{
			kind:    eff.kind,
			op:      eff.op,
			payload: eff.payload,
			system:  eff.system,
		}, queue); err != nil {
			warnings = append(warnings, p.warn(eff.kind, eff.op, err))
		}
	}
	// Effects running mid-drain may record planning failures of their own, so
	// failures convert only after the queue is empty.
	for _, f := range queue.failures {
		warnings = append(warnings, p.warn(f.kind, f.op, f.err))
	}
	return warnings
}

func (p *Pipeline) warn(kind domain.EntityType, op domain.Operation, err error) domain.Warning {
	se := domain.SideEffectError{Entity: kind, Operation: op, Err: err}
	p.log.Error().Err(err).
		Str("entity", string(kind)).
		Str("operation", string(op)).
		Msg("side effect failed")
	return domain.Warning{Entity: kind, Operation: op, Message: se.Error()}
}

// applyClosure applies one index operation, re-reading the authoritative
// parent pointers first if the cached index does not know the node.
func (p *Pipeline) applyClosure(ctx context.Context, op *closureOp) error {
	switch op.action {
	case closureInsert:
		if err := p.ensureClosure(ctx, op.parent); err != nil {
			return err
		}
		if p.closure.Contains(op.node) {
			// A rebuild triggered above already picked up the new row.
			return nil
		}
		_, err := p.closure.OnInsert(op.node, op.parent)
		return err
	case closureReparent:
		if err := p.ensureClosure(ctx, op.node, op.parent); err != nil {
			return err
		}
		_, err := p.closure.Reparent(op.node, op.parent)
		return err
	case closureRemove:
		p.closure.RemoveSubtree(op.node)
		return nil
	default:
		return nil
	}
}

// ensureClosure treats the in-memory index as a read-through cache: if any of
// the referenced nodes is unknown, the index is rebuilt from the stored
// parent pointers of all live requirements.
func (p *Pipeline) ensureClosure(ctx context.Context, nodes ...string) error {
	stale := false
	for _, node := range nodes {
		if node != "" && !p.closure.Contains(node) {
			stale = true
			break
		}
	}
	if !stale {
		return nil
	}
	rows, err := p.backend.List(ctx, domain.EntityRequirement.Table())
	if err != nil {
		return err
	}
	live := make(map[string]bool, len(rows))
	for _, row := range rows {
		if !domain.RowBool(row, "is_deleted") {
			live[domain.RowString(row, "id")] = true
		}
	}
	parents := make(map[string]string, len(live))
	for _, row := range rows {
		id := domain.RowString(row, "id")
		if !live[id] {
			continue
		}
		parent := domain.RowString(row, "parent_id")
		if !live[parent] {
			// A soft-deleted parent leaves its live children as roots; the
			// index tracks live rows only.
			parent = ""
		}
		parents[id] = parent
	}
	return p.closure.Rebuild(parents)
}

// cascadeTarget is one descendant the containment cascade must soft-delete.
type cascadeTarget struct {
	kind domain.EntityType
	id   string
}

// containment maps each containment level to its children: which tables to
// scan and which field points back at the parent.
var containment = map[domain.EntityType][]struct {
	kind  domain.EntityType
	field string
}{
	domain.EntityOrganization: {{domain.EntityProject, "organization_id"}},
	domain.EntityProject:      {{domain.EntityDocument, "project_id"}},
	domain.EntityDocument: {
		{domain.EntityRequirement, "document_id"},
		{domain.EntityTest, "document_id"},
	},
}

// cascadePlan walks the containment hierarchy breadth first from a deleted
// root and returns every live descendant, parents before children. It only
// plans; the deletions themselves are resubmitted through the orchestrator.
func (p *Pipeline) cascadePlan(ctx context.Context, kind domain.EntityType, id string) ([]cascadeTarget, error) {
	var plan []cascadeTarget
	frontier := []cascadeTarget{{kind: kind, id: id}}
	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		for _, child := range containment[current.kind] {
			rows, err := p.backend.List(ctx, child.kind.Table())
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				if domain.RowBool(row, "is_deleted") {
					continue
				}
				if domain.RowString(row, child.field) != current.id {
					continue
				}
				target := cascadeTarget{kind: child.kind, id: domain.RowString(row, "id")}
				plan = append(plan, target)
				frontier = append(frontier, target)
			}
		}
	}
	return plan, nil
}
