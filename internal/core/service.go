// Package core exposes the typed service surface over the mutation pipeline.
// Callers that know the entity they are touching use these wrappers; generic
// callers (a tool-call handler, an RPC shim) can still drop down to Execute.
package core

import (
	"context"

	"github.com/rs/zerolog"

	"reqcore/internal/archive"
	"reqcore/internal/audit"
	"reqcore/internal/pipeline"
	"reqcore/pkg/domain"
)

// Service owns a pipeline, its audit trail, and the closure index read
// surface.
type Service struct {
	pipe     *pipeline.Pipeline
	trail    *audit.Memory
	archiver *audit.Archiver
	log      zerolog.Logger
}

// Config carries optional service collaborators.
type Config struct {
	Logger   zerolog.Logger
	Observer pipeline.Observer
	// Archive, when set, receives audit trail batches via FlushArchive.
	Archive archive.Store
}

// NewService wires a service over the given backend.
func NewService(backend domain.Backend, cfg Config) *Service {
	trail := audit.NewMemory()
	opts := []pipeline.Option{
		pipeline.WithTrail(trail),
		pipeline.WithLogger(cfg.Logger),
	}
	if cfg.Observer != nil {
		opts = append(opts, pipeline.WithObserver(cfg.Observer))
	}
	s := &Service{
		pipe:  pipeline.New(backend, opts...),
		trail: trail,
		log:   cfg.Logger,
	}
	if cfg.Archive != nil {
		s.archiver = audit.NewArchiver(trail, cfg.Archive, cfg.Logger)
	}
	return s
}

// Execute is the generic entry point, mirroring the pipeline contract.
func (s *Service) Execute(ctx context.Context, actor domain.Actor, kind domain.EntityType, op domain.Operation, payload domain.Row, baseline *int64) (pipeline.Result, error) {
	return s.pipe.Execute(ctx, actor, kind, op, payload, baseline)
}

// Trail exposes the in-process audit trail.
func (s *Service) Trail() *audit.Memory { return s.trail }

// FlushArchive exports audit changes recorded since the previous flush to the
// configured archive store. It reports the number of changes written; zero
// when no store is configured or nothing is pending.
func (s *Service) FlushArchive(ctx context.Context) (int, error) {
	if s.archiver == nil {
		return 0, nil
	}
	return s.archiver.Flush(ctx)
}

func typed[T any](res pipeline.Result, err error) (T, []domain.Warning, error) {
	var zero T
	if err != nil {
		return zero, nil, err
	}
	entity, err := domain.FromRow[T](res.Record)
	if err != nil {
		return zero, res.Warnings, err
	}
	return entity, res.Warnings, nil
}

// CreateOrganization creates an organization and, through the pipeline's side
// effects, enrolls the actor as its owner.
func (s *Service) CreateOrganization(ctx context.Context, actor domain.Actor, name string, isPublic bool) (domain.Organization, []domain.Warning, error) {
	return typed[domain.Organization](s.pipe.Execute(ctx, actor, domain.EntityOrganization, domain.OpCreate, domain.Row{
		"name": name, "is_public": isPublic,
	}, nil))
}

// GetOrganization reads one organization.
func (s *Service) GetOrganization(ctx context.Context, actor domain.Actor, id string) (domain.Organization, error) {
	org, _, err := typed[domain.Organization](s.pipe.Execute(ctx, actor, domain.EntityOrganization, domain.OpRead, domain.Row{"id": id}, nil))
	return org, err
}

// RenameOrganization updates an organization's name under the optimistic
// concurrency gate.
func (s *Service) RenameOrganization(ctx context.Context, actor domain.Actor, id, name string, baseline int64) (domain.Organization, []domain.Warning, error) {
	return typed[domain.Organization](s.pipe.Execute(ctx, actor, domain.EntityOrganization, domain.OpUpdate, domain.Row{
		"id": id, "name": name,
	}, &baseline))
}

// DeleteOrganization soft-deletes an organization and cascades over its
// projects, documents, requirements, and tests.
func (s *Service) DeleteOrganization(ctx context.Context, actor domain.Actor, id string) (domain.Organization, []domain.Warning, error) {
	return typed[domain.Organization](s.pipe.Execute(ctx, actor, domain.EntityOrganization, domain.OpDelete, domain.Row{"id": id}, nil))
}

// CreateProject creates a project under an organization.
func (s *Service) CreateProject(ctx context.Context, actor domain.Actor, organizationID, name string) (domain.Project, []domain.Warning, error) {
	return typed[domain.Project](s.pipe.Execute(ctx, actor, domain.EntityProject, domain.OpCreate, domain.Row{
		"organization_id": organizationID, "name": name,
	}, nil))
}

// CreateDocument creates a document under a project.
func (s *Service) CreateDocument(ctx context.Context, actor domain.Actor, projectID, name string) (domain.Document, []domain.Warning, error) {
	return typed[domain.Document](s.pipe.Execute(ctx, actor, domain.EntityDocument, domain.OpCreate, domain.Row{
		"project_id": projectID, "name": name,
	}, nil))
}

// CreateRequirement creates a requirement, optionally under a parent in the
// same document.
func (s *Service) CreateRequirement(ctx context.Context, actor domain.Actor, documentID, name, parentID string) (domain.Requirement, []domain.Warning, error) {
	payload := domain.Row{"document_id": documentID, "name": name}
	if parentID != "" {
		payload["parent_id"] = parentID
	}
	return typed[domain.Requirement](s.pipe.Execute(ctx, actor, domain.EntityRequirement, domain.OpCreate, payload, nil))
}

// ReparentRequirement moves a requirement under a new parent, or to the root
// when parentID is empty.
func (s *Service) ReparentRequirement(ctx context.Context, actor domain.Actor, id, parentID string, baseline int64) (domain.Requirement, []domain.Warning, error) {
	return typed[domain.Requirement](s.pipe.Execute(ctx, actor, domain.EntityRequirement, domain.OpUpdate, domain.Row{
		"id": id, "parent_id": parentID,
	}, &baseline))
}

// CreateTest creates a test case under a document.
func (s *Service) CreateTest(ctx context.Context, actor domain.Actor, documentID, name string) (domain.TestCase, []domain.Warning, error) {
	return typed[domain.TestCase](s.pipe.Execute(ctx, actor, domain.EntityTest, domain.OpCreate, domain.Row{
		"document_id": documentID, "name": name,
	}, nil))
}

// AddMember enrolls a user into an organization with a role.
func (s *Service) AddMember(ctx context.Context, actor domain.Actor, organizationID, userID string, role domain.Role) (domain.OrganizationMember, []domain.Warning, error) {
	return typed[domain.OrganizationMember](s.pipe.Execute(ctx, actor, domain.EntityOrganizationMember, domain.OpCreate, domain.Row{
		"organization_id": organizationID, "user_id": userID, "role": string(role),
	}, nil))
}

// CreateProfile registers a profile for the actor. The first profile
// bootstraps a personal organization through the side-effect chain.
func (s *Service) CreateProfile(ctx context.Context, actor domain.Actor, displayName string) (domain.Profile, []domain.Warning, error) {
	return typed[domain.Profile](s.pipe.Execute(ctx, actor, domain.EntityProfile, domain.OpCreate, domain.Row{
		"user_id": actor.ID, "display_name": displayName,
	}, nil))
}

// RequirementDescendants lists the ids of every requirement below the given
// one in the parent hierarchy.
func (s *Service) RequirementDescendants(id string) []string {
	return s.pipe.Closure().DescendantsOf(id)
}
