// Package domain defines the core persistent entities, value types, actor and
// authorization primitives, and the persistence boundary used by reqcore.
package domain

import (
	"encoding/json"
	"time"
)

// EntityType identifies the type of record flowing through the pipeline.
type EntityType string

// Supported entity type identifiers used in Change records and backend tables.
const (
	// EntityOrganization identifies a tenant organization record.
	EntityOrganization EntityType = "organization"
	// EntityProject identifies a project record owned by an organization.
	EntityProject EntityType = "project"
	// EntityDocument identifies a document record owned by a project.
	EntityDocument EntityType = "document"
	// EntityRequirement identifies a requirement record owned by a document.
	EntityRequirement EntityType = "requirement"
	// EntityTest identifies a test-case record owned by a document.
	EntityTest EntityType = "test"
	// EntityOrganizationMember identifies an organization membership row.
	EntityOrganizationMember EntityType = "organization_member"
	// EntityProfile identifies a user profile record.
	EntityProfile EntityType = "profile"
)

// Table returns the backend table name for the entity type.
func (t EntityType) Table() string {
	switch t {
	case EntityOrganization:
		return "organizations"
	case EntityProject:
		return "projects"
	case EntityDocument:
		return "documents"
	case EntityRequirement:
		return "requirements"
	case EntityTest:
		return "tests"
	case EntityOrganizationMember:
		return "organization_members"
	case EntityProfile:
		return "profiles"
	}
	return string(t)
}

// EntityTypes lists every entity kind handled by the pipeline, in containment
// order (parents before children).
func EntityTypes() []EntityType {
	return []EntityType{
		EntityOrganization,
		EntityProject,
		EntityDocument,
		EntityRequirement,
		EntityTest,
		EntityOrganizationMember,
		EntityProfile,
	}
}

// Operation enumerates the pipeline entry points exposed to callers.
type Operation string

// Pipeline operations.
const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Role identifies a membership privilege level within an organization.
type Role string

// Membership roles, most to least privileged.
const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleOwner:  4,
	RoleAdmin:  3,
	RoleEditor: 2,
	RoleViewer: 1,
}

// AtLeast reports whether the role grants at least the privilege of other.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// Valid reports whether the role is one of the recognised membership roles.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// Base contains the common audit, soft-delete, and versioning fields shared by
// every mutable entity. All of these are pipeline-generated: the stamper fills
// them and the schema registry rejects payloads that try to set them.
type Base struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy string     `json:"created_by"`
	UpdatedBy string     `json:"updated_by"`
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *string    `json:"deleted_by,omitempty"`
	Version   int64      `json:"version"`
}

// Organization is the tenant root of the containment hierarchy.
type Organization struct {
	Base
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsPublic bool   `json:"is_public"`
}

// Project groups documents under an organization.
type Project struct {
	Base
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	IsPublic       bool   `json:"is_public"`
}

// Document groups requirements and test cases under a project.
type Document struct {
	Base
	ProjectID   string `json:"project_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
}

// Requirement is a leaf of the containment hierarchy and a node of the
// requirement parent/child tree tracked by the closure index.
type Requirement struct {
	Base
	DocumentID string  `json:"document_id"`
	Name       string  `json:"name"`
	ExternalID string  `json:"external_id"`
	ParentID   *string `json:"parent_id,omitempty"`
	Text       string  `json:"text,omitempty"`
	Priority   string  `json:"priority,omitempty"`
}

// TestCase verifies one or more requirements within a document.
type TestCase struct {
	Base
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	Text       string `json:"text,omitempty"`
	Status     string `json:"status,omitempty"`
}

// OrganizationMember links a user to an organization with a role.
type OrganizationMember struct {
	Base
	OrganizationID string `json:"organization_id"`
	UserID         string `json:"user_id"`
	Role           Role   `json:"role"`
}

// Profile carries per-user presentation data. Inserting the first profile for
// a user schedules the creation of that user's personal organization.
type Profile struct {
	Base
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Row is the untyped record representation crossing the pipeline and the
// persistence boundary. Field names match the JSON tags of the typed entities.
type Row = map[string]any

// CloneRow returns a copy of row safe to mutate independently. Nested maps
// and slices are cloned one level deep, which covers every field the pipeline
// produces.
func CloneRow(row Row) Row {
	if row == nil {
		return nil
	}
	out := make(Row, len(row))
	for k, v := range row {
		switch tv := v.(type) {
		case map[string]any:
			inner := make(map[string]any, len(tv))
			for ik, iv := range tv {
				inner[ik] = iv
			}
			out[k] = inner
		case []any:
			out[k] = append([]any(nil), tv...)
		default:
			out[k] = v
		}
	}
	return out
}

// ToRow converts a typed entity to its row form via its JSON encoding.
func ToRow(entity any) (Row, error) {
	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// FromRow hydrates a typed entity from its row form.
func FromRow[T any](row Row) (T, error) {
	var out T
	raw, err := json.Marshal(row)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// RowString returns the string value of a row field, or "" when absent or not
// a string.
func RowString(row Row, field string) string {
	if v, ok := row[field].(string); ok {
		return v
	}
	return ""
}

// RowBool returns the boolean value of a row field, false when absent.
func RowBool(row Row, field string) bool {
	v, _ := row[field].(bool)
	return v
}

// RowVersion extracts the version counter from a row. JSON round-trips store
// numbers as float64, so both representations are accepted.
func RowVersion(row Row) int64 {
	switch v := row["version"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		n, err := v.Int64()
		if err == nil {
			return n
		}
	}
	return 0
}
