package schema_test

import (
	"errors"
	"testing"

	"reqcore/internal/schema"
	"reqcore/pkg/domain"
)

func TestDefaultRegistryCoversAllKinds(t *testing.T) {
	r := schema.Default()
	for _, kind := range domain.EntityTypes() {
		if _, ok := r.Lookup(kind); !ok {
			t.Fatalf("no schema definition for %s", kind)
		}
	}
	if len(r.Kinds()) != len(domain.EntityTypes()) {
		t.Fatalf("registry has %d kinds, want %d", len(r.Kinds()), len(domain.EntityTypes()))
	}
}

func TestValidateCreate(t *testing.T) {
	r := schema.Default()

	cases := []struct {
		name    string
		kind    domain.EntityType
		payload domain.Row
		field   string // expected failing field, "" for success
	}{
		{"organization ok", domain.EntityOrganization, domain.Row{"name": "Acme"}, ""},
		{"organization missing name", domain.EntityOrganization, domain.Row{}, "name"},
		{"organization empty name", domain.EntityOrganization, domain.Row{"name": ""}, "name"},
		{"organization unknown field", domain.EntityOrganization, domain.Row{"name": "Acme", "plan": "free"}, "plan"},
		{"organization generated field", domain.EntityOrganization, domain.Row{"name": "Acme", "version": 4}, "version"},
		{"requirement ok", domain.EntityRequirement, domain.Row{"document_id": "d1", "name": "Login", "priority": "p1"}, ""},
		{"requirement bad enum", domain.EntityRequirement, domain.Row{"document_id": "d1", "name": "Login", "priority": "urgent"}, "priority"},
		{"requirement external id rejected", domain.EntityRequirement, domain.Row{"document_id": "d1", "name": "Login", "external_id": "REQ-1"}, "external_id"},
		{"member bad role", domain.EntityOrganizationMember, domain.Row{"organization_id": "o1", "user_id": "u1", "role": "superuser"}, "role"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := r.ValidateCreate(tc.kind, tc.payload)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("failing field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestValidateUpdate(t *testing.T) {
	r := schema.Default()

	if err := r.ValidateUpdate(domain.EntityDocument, domain.Row{"description": "v2"}); err != nil {
		t.Fatalf("partial patch rejected: %v", err)
	}
	if err := r.ValidateUpdate(domain.EntityDocument, domain.Row{"name": ""}); err == nil {
		t.Fatal("blanking a required field should fail")
	}
	if err := r.ValidateUpdate(domain.EntityDocument, domain.Row{"updated_at": "2024-01-01"}); err == nil {
		t.Fatal("setting a generated field should fail")
	}
	if err := r.ValidateUpdate(domain.EntityTest, domain.Row{"status": "nope"}); err == nil {
		t.Fatal("enum violation should fail")
	}
	if err := r.ValidateUpdate("widget", domain.Row{}); err == nil {
		t.Fatal("unknown kind should fail")
	}
}
