package policy

import (
	"context"
	"testing"

	"reqcore/pkg/domain"
)

func actorWith(id string, org string, role domain.Role) domain.Actor {
	a := domain.Actor{ID: id, Memberships: map[string]domain.Role{}}
	if org != "" {
		a.Memberships[org] = role
	}
	return a
}

func TestOrganizationPolicy(t *testing.T) {
	p := ForKind()[domain.EntityOrganization]
	member := actorWith("alice", "org-1", domain.RoleViewer)
	admin := actorWith("bob", "org-1", domain.RoleAdmin)
	outsider := actorWith("carol", "", "")
	chain := Chain{OrganizationID: "org-1"}

	if d := p.CanInsert(outsider, domain.Row{}, Chain{}); !d.Allowed {
		t.Fatalf("any authenticated actor may create organizations, denied: %s", d.Reason)
	}
	if d := p.CanInsert(domain.Actor{}, domain.Row{}, Chain{}); d.Allowed {
		t.Fatal("anonymous actor created an organization")
	}
	if d := p.CanSelect(member, domain.Row{"is_public": false}, chain); !d.Allowed {
		t.Fatalf("member denied select: %s", d.Reason)
	}
	if d := p.CanSelect(outsider, domain.Row{"is_public": false}, chain); d.Allowed {
		t.Fatal("non-member read a private organization")
	}
	if d := p.CanSelect(outsider, domain.Row{"is_public": true}, chain); !d.Allowed {
		t.Fatalf("public organization not readable: %s", d.Reason)
	}
	if d := p.CanUpdate(member, nil, nil, chain); d.Allowed {
		t.Fatal("viewer updated an organization")
	}
	if d := p.CanUpdate(admin, nil, nil, chain); !d.Allowed {
		t.Fatalf("admin denied update: %s", d.Reason)
	}
	if d := p.CanDelete(member, nil, chain); d.Allowed {
		t.Fatal("viewer deleted an organization")
	}
}

func TestProjectPolicy(t *testing.T) {
	p := ForKind()[domain.EntityProject]
	viewer := actorWith("alice", "org-1", domain.RoleViewer)
	owner := actorWith("bob", "org-1", domain.RoleOwner)
	outsider := actorWith("carol", "org-2", domain.RoleOwner)
	chain := Chain{OrganizationID: "org-1", ProjectID: "proj-1"}

	if d := p.CanInsert(viewer, domain.Row{}, chain); !d.Allowed {
		t.Fatalf("any member may create a project, denied: %s", d.Reason)
	}
	if d := p.CanInsert(outsider, domain.Row{}, chain); d.Allowed {
		t.Fatal("non-member created a project")
	}
	if d := p.CanUpdate(viewer, nil, nil, chain); d.Allowed {
		t.Fatal("viewer updated a project")
	}
	if d := p.CanDelete(owner, nil, chain); !d.Allowed {
		t.Fatalf("owner denied project delete: %s", d.Reason)
	}
}

func TestContentPolicies(t *testing.T) {
	policies := ForKind()
	editor := actorWith("alice", "org-1", domain.RoleEditor)
	viewer := actorWith("bob", "org-1", domain.RoleViewer)
	admin := actorWith("carol", "org-1", domain.RoleAdmin)
	chain := Chain{OrganizationID: "org-1", ProjectID: "proj-1", DocumentID: "doc-1"}

	for _, kind := range []domain.EntityType{domain.EntityDocument, domain.EntityRequirement, domain.EntityTest} {
		p := policies[kind]
		if d := p.CanInsert(editor, domain.Row{}, chain); !d.Allowed {
			t.Fatalf("%s: editor denied insert: %s", kind, d.Reason)
		}
		if d := p.CanInsert(viewer, domain.Row{}, chain); d.Allowed {
			t.Fatalf("%s: viewer inserted content", kind)
		}
		if d := p.CanUpdate(editor, nil, nil, chain); !d.Allowed {
			t.Fatalf("%s: editor denied update: %s", kind, d.Reason)
		}
		if d := p.CanSelect(viewer, domain.Row{}, chain); !d.Allowed {
			t.Fatalf("%s: member denied select: %s", kind, d.Reason)
		}
	}

	// Document and test deletion is narrower than their edit rights.
	for _, kind := range []domain.EntityType{domain.EntityDocument, domain.EntityTest} {
		p := policies[kind]
		if d := p.CanDelete(editor, nil, chain); d.Allowed {
			t.Fatalf("%s: editor deleted, requires admin", kind)
		}
		if d := p.CanDelete(admin, nil, chain); !d.Allowed {
			t.Fatalf("%s: admin denied delete: %s", kind, d.Reason)
		}
	}
	if d := policies[domain.EntityRequirement].CanDelete(editor, nil, chain); !d.Allowed {
		t.Fatalf("editor denied requirement delete: %s", d.Reason)
	}
}

func TestPublicChainSelect(t *testing.T) {
	p := ForKind()[domain.EntityRequirement]
	outsider := actorWith("dave", "org-9", domain.RoleOwner)
	if d := p.CanSelect(outsider, domain.Row{}, Chain{OrganizationID: "org-1", Public: true}); !d.Allowed {
		t.Fatalf("public chain not readable by outsider: %s", d.Reason)
	}
	if d := p.CanSelect(outsider, domain.Row{}, Chain{OrganizationID: "org-1"}); d.Allowed {
		t.Fatal("private chain readable by outsider")
	}
}

func TestProfilePolicy(t *testing.T) {
	p := ForKind()[domain.EntityProfile]
	alice := actorWith("alice", "", "")
	bob := actorWith("bob", "", "")
	existing := domain.Row{"user_id": "alice"}

	if d := p.CanInsert(alice, domain.Row{"user_id": "alice"}, Chain{}); !d.Allowed {
		t.Fatalf("self profile insert denied: %s", d.Reason)
	}
	if d := p.CanInsert(bob, domain.Row{"user_id": "alice"}, Chain{}); d.Allowed {
		t.Fatal("created a profile for another user")
	}
	if d := p.CanUpdate(bob, existing, nil, Chain{}); d.Allowed {
		t.Fatal("updated another user's profile")
	}
	if d := p.CanDelete(alice, existing, Chain{}); !d.Allowed {
		t.Fatalf("self profile delete denied: %s", d.Reason)
	}
}

// chainBackend serves Get from a fixed set of rows.
type chainBackend struct {
	rows map[string]map[string]domain.Row
}

func (b *chainBackend) Insert(ctx context.Context, table string, row domain.Row) (domain.Row, error) {
	return nil, nil
}

func (b *chainBackend) Update(ctx context.Context, table, id string, patch domain.Row, expectedVersion *int64) (domain.Row, error) {
	return nil, nil
}

func (b *chainBackend) Get(ctx context.Context, table, id string) (domain.Row, error) {
	if row, ok := b.rows[table][id]; ok {
		return domain.CloneRow(row), nil
	}
	return nil, domain.NotFoundError{ID: id}
}

func (b *chainBackend) Delete(ctx context.Context, table, id string, patch domain.Row) (domain.Row, error) {
	return nil, nil
}

func (b *chainBackend) List(ctx context.Context, table string) ([]domain.Row, error) {
	return nil, nil
}

func TestResolverWalksChain(t *testing.T) {
	backend := &chainBackend{rows: map[string]map[string]domain.Row{
		domain.EntityOrganization.Table(): {
			"org-1": {"id": "org-1", "is_public": false},
		},
		domain.EntityProject.Table(): {
			"proj-1": {"id": "proj-1", "organization_id": "org-1", "is_public": true},
		},
		domain.EntityDocument.Table(): {
			"doc-1": {"id": "doc-1", "project_id": "proj-1"},
		},
	}}
	r := NewResolver(backend)
	ctx := context.Background()

	chain, err := r.Resolve(ctx, domain.EntityRequirement, domain.Row{"document_id": "doc-1"})
	if err != nil {
		t.Fatalf("resolve requirement chain: %v", err)
	}
	if chain.OrganizationID != "org-1" || chain.ProjectID != "proj-1" || chain.DocumentID != "doc-1" {
		t.Fatalf("unexpected chain: %+v", chain)
	}
	if !chain.Public {
		t.Fatal("public project did not mark the chain public")
	}

	if _, err := r.Resolve(ctx, domain.EntityDocument, domain.Row{"project_id": "missing"}); err == nil {
		t.Fatal("expected not found for dangling project reference")
	}

	chain, err = r.Resolve(ctx, domain.EntityOrganization, domain.Row{"id": "org-1", "is_public": false})
	if err != nil {
		t.Fatalf("resolve organization chain: %v", err)
	}
	if chain.OrganizationID != "org-1" || chain.Public {
		t.Fatalf("unexpected organization chain: %+v", chain)
	}
}
