// Package policy implements the per-entity-kind row authorization rules.
// Each policy decides insert/select/update/delete for one kind given the
// actor's memberships and the record's resolved ownership chain. Update and
// delete always evaluate against the existing stored record, never the patch,
// so self-reported ownership fields cannot escalate privileges.
package policy

import (
	"reqcore/pkg/domain"
)

// Chain is the resolved ownership chain of a record: which organization and
// project own it, and whether any link of the chain is explicitly public.
type Chain struct {
	OrganizationID string
	ProjectID      string
	DocumentID     string
	Public         bool
}

// Decision is the outcome of a policy entry point.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow grants the operation.
func Allow() Decision { return Decision{Allowed: true} }

// Deny refuses the operation with a reason surfaced in the error.
func Deny(reason string) Decision { return Decision{Reason: reason} }

// Policy decides the four operations for one entity kind.
type Policy interface {
	CanInsert(actor domain.Actor, payload domain.Row, chain Chain) Decision
	CanSelect(actor domain.Actor, record domain.Row, chain Chain) Decision
	CanUpdate(actor domain.Actor, existing domain.Row, patch domain.Row, chain Chain) Decision
	CanDelete(actor domain.Actor, existing domain.Row, chain Chain) Decision
}

// ForKind returns the policy table for the full entity model. The table is
// resolved once per request by the orchestrator.
func ForKind() map[domain.EntityType]Policy {
	return map[domain.EntityType]Policy{
		domain.EntityOrganization:       organizationPolicy{},
		domain.EntityProject:            projectPolicy{},
		domain.EntityDocument:           contentPolicy{kind: domain.EntityDocument, deleteMin: domain.RoleAdmin},
		domain.EntityRequirement:        contentPolicy{kind: domain.EntityRequirement, deleteMin: domain.RoleEditor},
		domain.EntityTest:               contentPolicy{kind: domain.EntityTest, deleteMin: domain.RoleAdmin},
		domain.EntityOrganizationMember: memberPolicy{},
		domain.EntityProfile:            profilePolicy{},
	}
}

func selectDecision(actor domain.Actor, chain Chain) Decision {
	if chain.Public {
		return Allow()
	}
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	if !actor.MemberOf(chain.OrganizationID) {
		return Deny("not a member of the owning organization")
	}
	return Allow()
}

type organizationPolicy struct{}

func (organizationPolicy) CanInsert(actor domain.Actor, _ domain.Row, _ Chain) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	return Allow()
}

func (organizationPolicy) CanSelect(actor domain.Actor, record domain.Row, chain Chain) Decision {
	if domain.RowBool(record, "is_public") {
		return Allow()
	}
	return selectDecision(actor, chain)
}

func (organizationPolicy) CanUpdate(actor domain.Actor, _ domain.Row, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

func (organizationPolicy) CanDelete(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

type projectPolicy struct{}

func (projectPolicy) CanInsert(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	if !actor.MemberOf(chain.OrganizationID) {
		return Deny("not a member of the parent organization")
	}
	return Allow()
}

func (projectPolicy) CanSelect(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return selectDecision(actor, chain)
}

func (projectPolicy) CanUpdate(actor domain.Actor, _ domain.Row, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

func (projectPolicy) CanDelete(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

// contentPolicy covers documents, requirements, and test cases: editor or
// better edits, deleteMin gates deletion (documents and tests are
// admin-only, requirements follow edit rights).
type contentPolicy struct {
	kind      domain.EntityType
	deleteMin domain.Role
}

func (p contentPolicy) CanInsert(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleEditor)
}

func (p contentPolicy) CanSelect(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return selectDecision(actor, chain)
}

func (p contentPolicy) CanUpdate(actor domain.Actor, _ domain.Row, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleEditor)
}

func (p contentPolicy) CanDelete(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, p.deleteMin)
}

type memberPolicy struct{}

func (memberPolicy) CanInsert(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	// Owner auto-enrollment is system-originated and never reaches this
	// check; direct membership management needs admin or better.
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

func (memberPolicy) CanSelect(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return selectDecision(actor, chain)
}

func (memberPolicy) CanUpdate(actor domain.Actor, _ domain.Row, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

func (memberPolicy) CanDelete(actor domain.Actor, _ domain.Row, chain Chain) Decision {
	return requireRole(actor, chain.OrganizationID, domain.RoleAdmin)
}

type profilePolicy struct{}

func (profilePolicy) CanInsert(actor domain.Actor, payload domain.Row, _ Chain) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	if user := domain.RowString(payload, "user_id"); user != "" && user != actor.ID {
		return Deny("profiles can only be created for the authenticated user")
	}
	return Allow()
}

func (profilePolicy) CanSelect(actor domain.Actor, record domain.Row, _ Chain) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	return Allow()
}

func (profilePolicy) CanUpdate(actor domain.Actor, existing domain.Row, _ domain.Row, _ Chain) Decision {
	return requireSelf(actor, existing)
}

func (profilePolicy) CanDelete(actor domain.Actor, existing domain.Row, _ Chain) Decision {
	return requireSelf(actor, existing)
}

func requireSelf(actor domain.Actor, existing domain.Row) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	if domain.RowString(existing, "user_id") != actor.ID {
		return Deny("profile belongs to another user")
	}
	return Allow()
}

func requireRole(actor domain.Actor, organizationID string, min domain.Role) Decision {
	if actor.Anonymous() {
		return Deny("authentication required")
	}
	role, ok := actor.RoleIn(organizationID)
	if !ok {
		return Deny("not a member of the owning organization")
	}
	if !role.AtLeast(min) {
		return Deny("requires role " + string(min) + " or better, have " + string(role))
	}
	return Allow()
}
