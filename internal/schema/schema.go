// Package schema describes, per entity kind, which payload fields exist,
// which are required on create, which enum domains apply, and which fields
// are pipeline-generated. The orchestrator consults it during validation to
// reject malformed payloads before any authorization or persistence work.
package schema

import (
	"fmt"
	"sort"

	"reqcore/pkg/domain"
)

// Definition captures the payload contract for one entity kind.
type Definition struct {
	Kind     domain.EntityType
	Required []string            // must be present on create
	Optional []string            // accepted on create and update
	Enums    map[string][]string // field -> allowed values
	// Generated fields are produced by the pipeline's hooks; a payload that
	// tries to set one is rejected.
	Generated []string
}

// writable reports whether the field may appear in a caller payload.
func (d Definition) writable(field string) bool {
	for _, f := range d.Required {
		if f == field {
			return true
		}
	}
	for _, f := range d.Optional {
		if f == field {
			return true
		}
	}
	return false
}

func (d Definition) generated(field string) bool {
	for _, f := range d.Generated {
		if f == field {
			return true
		}
	}
	return false
}

// Registry maps entity kinds to their payload definitions.
type Registry struct {
	defs map[domain.EntityType]Definition
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[domain.EntityType]Definition)}
}

// Register adds or replaces a definition.
func (r *Registry) Register(def Definition) {
	r.defs[def.Kind] = def
}

// Lookup returns the definition for a kind.
func (r *Registry) Lookup(kind domain.EntityType) (Definition, bool) {
	def, ok := r.defs[kind]
	return def, ok
}

// Kinds returns the registered entity kinds in stable order.
func (r *Registry) Kinds() []domain.EntityType {
	out := make([]domain.EntityType, 0, len(r.defs))
	for kind := range r.defs {
		out = append(out, kind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ValidateCreate checks a create payload: every required field present, no
// unknown fields, no generated fields, enum values inside their domains.
func (r *Registry) ValidateCreate(kind domain.EntityType, payload domain.Row) error {
	def, ok := r.defs[kind]
	if !ok {
		return domain.ValidationError{Entity: kind, Reason: "unknown entity kind"}
	}
	for _, field := range def.Required {
		v, present := payload[field]
		if !present || v == nil || v == "" {
			return domain.ValidationError{Entity: kind, Field: field, Reason: "required field missing"}
		}
	}
	return r.validateFields(def, kind, payload)
}

// ValidateUpdate checks an update patch: no unknown fields, no generated
// fields, enum values inside their domains. Required fields are not enforced
// because a patch is partial by definition, but a patch may not blank one.
func (r *Registry) ValidateUpdate(kind domain.EntityType, patch domain.Row) error {
	def, ok := r.defs[kind]
	if !ok {
		return domain.ValidationError{Entity: kind, Reason: "unknown entity kind"}
	}
	for _, field := range def.Required {
		if v, present := patch[field]; present && (v == nil || v == "") {
			return domain.ValidationError{Entity: kind, Field: field, Reason: "required field cannot be cleared"}
		}
	}
	return r.validateFields(def, kind, patch)
}

func (r *Registry) validateFields(def Definition, kind domain.EntityType, payload domain.Row) error {
	for field, value := range payload {
		if def.generated(field) {
			return domain.ValidationError{Entity: kind, Field: field, Reason: "field is generated and cannot be set"}
		}
		if !def.writable(field) {
			return domain.ValidationError{Entity: kind, Field: field, Reason: "unknown field"}
		}
		allowed, ok := def.Enums[field]
		if !ok {
			continue
		}
		s, isString := value.(string)
		if !isString {
			return domain.ValidationError{Entity: kind, Field: field, Reason: "enum field must be a string"}
		}
		if !contains(allowed, s) {
			return domain.ValidationError{
				Entity: kind,
				Field:  field,
				Reason: fmt.Sprintf("value %q outside enum domain %v", s, allowed),
			}
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// baseGenerated lists the audit, soft-delete, and versioning fields the
// stamper owns on every entity.
var baseGenerated = []string{
	"id",
	"created_at", "updated_at",
	"created_by", "updated_by",
	"is_deleted", "deleted_at", "deleted_by",
	"version",
}

func withBase(extra ...string) []string {
	out := append([]string(nil), baseGenerated...)
	return append(out, extra...)
}

// Default builds the registry for the reqcore entity model.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Definition{
		Kind:      domain.EntityOrganization,
		Required:  []string{"name"},
		Optional:  []string{"slug", "is_public"},
		Generated: withBase(),
	})
	r.Register(Definition{
		Kind:      domain.EntityProject,
		Required:  []string{"organization_id", "name"},
		Optional:  []string{"slug", "is_public"},
		Generated: withBase(),
	})
	r.Register(Definition{
		Kind:      domain.EntityDocument,
		Required:  []string{"project_id", "name"},
		Optional:  []string{"slug", "description"},
		Generated: withBase(),
	})
	r.Register(Definition{
		Kind:     domain.EntityRequirement,
		Required: []string{"document_id", "name"},
		Optional: []string{"parent_id", "text", "priority"},
		Enums: map[string][]string{
			"priority": {"p0", "p1", "p2", "p3"},
		},
		Generated: withBase("external_id"),
	})
	r.Register(Definition{
		Kind:     domain.EntityTest,
		Required: []string{"document_id", "name"},
		Optional: []string{"text", "status"},
		Enums: map[string][]string{
			"status": {"draft", "ready", "passing", "failing", "blocked"},
		},
		Generated: withBase("external_id"),
	})
	r.Register(Definition{
		Kind:     domain.EntityOrganizationMember,
		Required: []string{"organization_id", "user_id", "role"},
		Enums: map[string][]string{
			"role": {string(domain.RoleOwner), string(domain.RoleAdmin), string(domain.RoleEditor), string(domain.RoleViewer)},
		},
		Generated: withBase(),
	})
	r.Register(Definition{
		Kind:      domain.EntityProfile,
		Required:  []string{"user_id"},
		Optional:  []string{"display_name"},
		Generated: withBase(),
	})
	return r
}
