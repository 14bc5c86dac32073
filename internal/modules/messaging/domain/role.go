package domain

import "strings"

// Role identifies the dashboard audience of an identity.
type Role string

const (
	RolePatient Role = "patient"
	RoleNurse   Role = "nurse"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleFamily  Role = "family"
)

var knownRoles = map[string]Role{
	string(RolePatient): RolePatient,
	string(RoleNurse):   RoleNurse,
	string(RoleDoctor):  RoleDoctor,
	string(RoleAdmin):   RoleAdmin,
	string(RoleFamily):  RoleFamily,
}

// ParseRole normalizes a raw role name.
func ParseRole(raw string) (Role, bool) {
	r, ok := knownRoles[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// FirstRole returns the first recognised role of a claim list.
func FirstRole(roles []string) (Role, bool) {
	for _, raw := range roles {
		if r, ok := ParseRole(raw); ok {
			return r, true
		}
	}
	return "", false
}

// accessRank orders roles for access checks; family is outside the clinical hierarchy.
var accessRank = map[Role]int{
	RolePatient: 0,
	RoleNurse:   1,
	RoleDoctor:  2,
	RoleAdmin:   3,
}

// HasAccess reports whether role ranks at or above required in patient < nurse < doctor < admin.
func HasAccess(role, required Role) bool {
	have, ok := accessRank[role]
	if !ok {
		return false
	}
	need, ok := accessRank[required]
	if !ok {
		return false
	}
	return have >= need
}
