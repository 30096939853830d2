package policy

import (
	"context"

	"reqcore/pkg/domain"
)

// Resolver walks a record's containment chain up to its owning organization
// using the persistence backend. Soft-deleted links still resolve so that
// cascade mutations can be authorized against the same chain as their root.
type Resolver struct {
	backend domain.Backend
}

// NewResolver returns a resolver bound to a backend.
func NewResolver(backend domain.Backend) *Resolver {
	return &Resolver{backend: backend}
}

// Resolve computes the ownership chain for a row of the given kind. For
// inserts the row is the incoming payload; for every other operation it is
// the stored record. Organizations and profiles terminate immediately, all
// other kinds walk parent references upward.
func (r *Resolver) Resolve(ctx context.Context, kind domain.EntityType, row domain.Row) (Chain, error) {
	var chain Chain
	switch kind {
	case domain.EntityOrganization:
		chain.OrganizationID = domain.RowString(row, "id")
		chain.Public = domain.RowBool(row, "is_public")
		return chain, nil
	case domain.EntityProfile:
		return chain, nil
	case domain.EntityProject:
		return r.fromOrganization(ctx, chain, domain.RowString(row, "organization_id"), domain.RowBool(row, "is_public"))
	case domain.EntityOrganizationMember:
		return r.fromOrganization(ctx, chain, domain.RowString(row, "organization_id"), false)
	case domain.EntityDocument:
		return r.fromProject(ctx, chain, domain.RowString(row, "project_id"))
	case domain.EntityRequirement, domain.EntityTest:
		return r.fromDocument(ctx, chain, domain.RowString(row, "document_id"))
	default:
		return chain, domain.ValidationError{Entity: kind, Reason: "unknown entity kind"}
	}
}

func (r *Resolver) fromDocument(ctx context.Context, chain Chain, documentID string) (Chain, error) {
	if documentID == "" {
		return chain, domain.ValidationError{Entity: domain.EntityDocument, Field: "document_id", Reason: "missing parent reference"}
	}
	doc, err := r.backend.Get(ctx, domain.EntityDocument.Table(), documentID)
	if err != nil {
		return chain, err
	}
	chain.DocumentID = documentID
	return r.fromProject(ctx, chain, domain.RowString(doc, "project_id"))
}

func (r *Resolver) fromProject(ctx context.Context, chain Chain, projectID string) (Chain, error) {
	if projectID == "" {
		return chain, domain.ValidationError{Entity: domain.EntityProject, Field: "project_id", Reason: "missing parent reference"}
	}
	project, err := r.backend.Get(ctx, domain.EntityProject.Table(), projectID)
	if err != nil {
		return chain, err
	}
	chain.ProjectID = projectID
	return r.fromOrganization(ctx, chain, domain.RowString(project, "organization_id"), domain.RowBool(project, "is_public"))
}

func (r *Resolver) fromOrganization(ctx context.Context, chain Chain, organizationID string, public bool) (Chain, error) {
	if organizationID == "" {
		return chain, domain.ValidationError{Entity: domain.EntityOrganization, Field: "organization_id", Reason: "missing parent reference"}
	}
	org, err := r.backend.Get(ctx, domain.EntityOrganization.Table(), organizationID)
	if err != nil {
		return chain, err
	}
	chain.OrganizationID = organizationID
	chain.Public = public || domain.RowBool(org, "is_public")
	return chain, nil
}
