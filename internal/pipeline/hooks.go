package pipeline

import (
	"context"

	"reqcore/internal/slug"
	"reqcore/pkg/domain"
)

// beforeInsert runs the kind-specific preparation of a stamped row: slug
// derivation, external id generation, parent existence checks, and duplicate
// guards. Any error here aborts before persistence.
func (p *Pipeline) beforeInsert(ctx context.Context, kind domain.EntityType, row domain.Row) error {
	switch kind {
	case domain.EntityOrganization:
		return p.deriveSlug(kind, row)
	case domain.EntityProject:
		if err := p.requireLive(ctx, domain.EntityOrganization, domain.RowString(row, "organization_id")); err != nil {
			return err
		}
		return p.deriveSlug(kind, row)
	case domain.EntityDocument:
		if err := p.requireLive(ctx, domain.EntityProject, domain.RowString(row, "project_id")); err != nil {
			return err
		}
		return p.deriveSlug(kind, row)
	case domain.EntityRequirement:
		if err := p.requireLive(ctx, domain.EntityDocument, domain.RowString(row, "document_id")); err != nil {
			return err
		}
		row["external_id"] = slug.ExternalID(kind)
		if parent := domain.RowString(row, "parent_id"); parent != "" {
			return p.requireParentRequirement(ctx, row, parent)
		}
		return nil
	case domain.EntityTest:
		if err := p.requireLive(ctx, domain.EntityDocument, domain.RowString(row, "document_id")); err != nil {
			return err
		}
		row["external_id"] = slug.ExternalID(kind)
		return nil
	case domain.EntityOrganizationMember:
		if err := p.requireLive(ctx, domain.EntityOrganization, domain.RowString(row, "organization_id")); err != nil {
			return err
		}
		return p.requireUniqueMembership(ctx, row)
	case domain.EntityProfile:
		return p.requireUniqueProfile(ctx, row)
	default:
		return nil
	}
}

// beforeUpdate validates kind-specific patch semantics against the stored
// record. Reparenting a requirement is cycle-checked here so the request
// aborts before any write.
func (p *Pipeline) beforeUpdate(ctx context.Context, kind domain.EntityType, existing, patch domain.Row) error {
	if _, ok := patch["slug"]; ok {
		normalized, err := slug.Normalize(domain.RowString(patch, "slug"))
		if err != nil {
			return domain.ValidationError{Entity: kind, Field: "slug", Reason: err.Error()}
		}
		patch["slug"] = normalized
	}

	if kind == domain.EntityRequirement {
		if _, ok := patch["parent_id"]; ok {
			return p.checkReparent(ctx, existing, patch)
		}
	}
	return nil
}

func (p *Pipeline) checkReparent(ctx context.Context, existing, patch domain.Row) error {
	node := domain.RowString(existing, "id")
	newParent := domain.RowString(patch, "parent_id")
	if newParent == domain.RowString(existing, "parent_id") {
		return nil
	}
	if err := p.ensureClosure(ctx, node, newParent); err != nil {
		return err
	}
	if newParent == "" {
		return nil
	}
	if err := p.requireParentRequirement(ctx, existing, newParent); err != nil {
		return err
	}
	if node == newParent || p.closure.WouldCycle(node, newParent) {
		return domain.CycleError{Node: node, AttemptedParent: newParent}
	}
	return nil
}

// afterInsert emits the deferred mutations an insert triggers.
func (p *Pipeline) afterInsert(kind domain.EntityType, actor domain.Actor, stored domain.Row, queue *effectQueue) {
	switch kind {
	case domain.EntityOrganization:
		// The creator becomes the first owner. System-originated: the
		// organization insert already proved the actor's right, so the
		// membership policy gate is bypassed while keeping the same actor
		// identity on the audit fields.
		queue.push(effect{
			system: true,
			kind:   domain.EntityOrganizationMember,
			op:     domain.OpCreate,
			payload: domain.Row{
				"organization_id": domain.RowString(stored, "id"),
				"user_id":         actor.ID,
				"role":            string(domain.RoleOwner),
			},
		})
	case domain.EntityProfile:
		// A first profile gets a personal organization; its insert passes the
		// normal policy gate and in turn schedules the owner enrollment.
		name := domain.RowString(stored, "display_name")
		if name == "" {
			name = "personal " + slug.RandomSuffix(6)
		}
		queue.push(effect{
			kind:    domain.EntityOrganization,
			op:      domain.OpCreate,
			payload: domain.Row{"name": name, "is_public": false},
		})
	case domain.EntityRequirement:
		queue.push(effect{closure: &closureOp{
			action: closureInsert,
			node:   domain.RowString(stored, "id"),
			parent: domain.RowString(stored, "parent_id"),
		}})
	}
}

// afterUpdate emits deferred mutations for an update.
func (p *Pipeline) afterUpdate(kind domain.EntityType, _ domain.Actor, before, after domain.Row, queue *effectQueue) {
	if kind != domain.EntityRequirement {
		return
	}
	oldParent := domain.RowString(before, "parent_id")
	newParent := domain.RowString(after, "parent_id")
	if oldParent != newParent {
		queue.push(effect{closure: &closureOp{
			action: closureReparent,
			node:   domain.RowString(after, "id"),
			parent: newParent,
		}})
	}
}

// afterDelete plans the containment cascade for deleted roots and the
// ancestry index cleanup for deleted requirements.
func (p *Pipeline) afterDelete(ctx context.Context, kind domain.EntityType, stored domain.Row, queue *effectQueue) error {
	switch kind {
	case domain.EntityOrganization, domain.EntityProject, domain.EntityDocument:
		targets, err := p.cascadePlan(ctx, kind, domain.RowString(stored, "id"))
		if err != nil {
			return err
		}
		for _, t := range targets {
			queue.push(effect{kind: t.kind, op: domain.OpDelete, payload: domain.Row{"id": t.id}})
		}
	case domain.EntityRequirement:
		queue.push(effect{closure: &closureOp{
			action: closureRemove,
			node:   domain.RowString(stored, "id"),
		}})
	}
	return nil
}

// deriveSlug normalizes a caller-supplied slug or derives one from the name,
// falling back to a random suffix when the name yields nothing usable.
func (p *Pipeline) deriveSlug(kind domain.EntityType, row domain.Row) error {
	if raw := domain.RowString(row, "slug"); raw != "" {
		normalized, err := slug.Normalize(raw)
		if err != nil {
			return domain.ValidationError{Entity: kind, Field: "slug", Reason: err.Error()}
		}
		row["slug"] = normalized
		return nil
	}
	fallback := string(kind) + "-" + slug.RandomSuffix(6)
	derived, err := slug.DeriveFromName(domain.RowString(row, "name"), fallback)
	if err != nil {
		return domain.ValidationError{Entity: kind, Field: "slug", Reason: err.Error()}
	}
	row["slug"] = derived
	return nil
}

// requireLive verifies a referenced parent exists and is not soft-deleted.
func (p *Pipeline) requireLive(ctx context.Context, kind domain.EntityType, id string) error {
	if id == "" {
		return domain.ValidationError{Entity: kind, Field: "id", Reason: "missing parent reference"}
	}
	row, err := p.backend.Get(ctx, kind.Table(), id)
	if err != nil {
		return err
	}
	if domain.RowBool(row, "is_deleted") {
		return domain.NotFoundError{Entity: kind, ID: id}
	}
	return nil
}

// requireParentRequirement checks a parent_id reference points at a live
// requirement in the same document.
func (p *Pipeline) requireParentRequirement(ctx context.Context, row domain.Row, parent string) error {
	parentRow, err := p.backend.Get(ctx, domain.EntityRequirement.Table(), parent)
	if err != nil {
		return err
	}
	if domain.RowBool(parentRow, "is_deleted") {
		return domain.NotFoundError{Entity: domain.EntityRequirement, ID: parent}
	}
	if domain.RowString(parentRow, "document_id") != domain.RowString(row, "document_id") {
		return domain.ValidationError{Entity: domain.EntityRequirement, Field: "parent_id", Reason: "parent belongs to a different document"}
	}
	return nil
}

func (p *Pipeline) requireUniqueMembership(ctx context.Context, row domain.Row) error {
	rows, err := p.backend.List(ctx, domain.EntityOrganizationMember.Table())
	if err != nil {
		return err
	}
	org := domain.RowString(row, "organization_id")
	user := domain.RowString(row, "user_id")
	for _, r := range rows {
		if domain.RowBool(r, "is_deleted") {
			continue
		}
		if domain.RowString(r, "organization_id") == org && domain.RowString(r, "user_id") == user {
			return domain.ValidationError{Entity: domain.EntityOrganizationMember, Field: "user_id", Reason: "already a member of the organization"}
		}
	}
	return nil
}

func (p *Pipeline) requireUniqueProfile(ctx context.Context, row domain.Row) error {
	rows, err := p.backend.List(ctx, domain.EntityProfile.Table())
	if err != nil {
		return err
	}
	user := domain.RowString(row, "user_id")
	for _, r := range rows {
		if domain.RowBool(r, "is_deleted") {
			continue
		}
		if domain.RowString(r, "user_id") == user {
			return domain.ValidationError{Entity: domain.EntityProfile, Field: "user_id", Reason: "profile already exists"}
		}
	}
	return nil
}
