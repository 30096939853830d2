package domain

// Actor identifies the authenticated principal performing a mutation, together
// with its organization memberships as supplied by the identity provider. The
// pipeline treats the membership set as a fixed input per invocation; it is
// never re-read mid-request.
type Actor struct {
	ID          string
	Memberships map[string]Role // organization id -> role
}

// Anonymous reports whether the actor carries no identity.
func (a Actor) Anonymous() bool {
	return a.ID == ""
}

// RoleIn returns the actor's role in the given organization.
func (a Actor) RoleIn(organizationID string) (Role, bool) {
	role, ok := a.Memberships[organizationID]
	return role, ok
}

// MemberOf reports whether the actor holds any role in the organization.
func (a Actor) MemberOf(organizationID string) bool {
	_, ok := a.Memberships[organizationID]
	return ok
}

// HasRoleAtLeast reports whether the actor holds min or better in the
// organization.
func (a Actor) HasRoleAtLeast(organizationID string, min Role) bool {
	role, ok := a.Memberships[organizationID]
	return ok && role.AtLeast(min)
}
