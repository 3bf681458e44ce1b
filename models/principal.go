package models

import (
	"strings"
)

// Role is the closed set of roles a signed-in identity can hold.
// Roles carry no rank: rules list the roles they admit explicitly.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// AllRoles returns every known role in a stable order.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleDoctor, RolePatient}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Principal is the resolved identity of the current session.
//
// A nil *Principal is the anonymous principal. Principals are immutable once
// built; a new value is produced on every resolution so that holders can
// detect changes by pointer comparison.
type Principal struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	ContactNumber string `json:"contactNumber,omitempty"`
}

// Anonymous is the principal of an unauthenticated session.
var Anonymous *Principal

// IsAnonymous reports whether p represents no signed-in identity.
func (p *Principal) IsAnonymous() bool {
	return p == nil || p.UID == ""
}

// HasRole reports whether p holds role.
func (p *Principal) HasRole(role Role) bool {
	return !p.IsAnonymous() && p.Role == role
}

// HasAnyRole reports whether p holds any of roles.
func (p *Principal) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if p.HasRole(role) {
			return true
		}
	}
	return false
}

// FullName returns "First Last", falling back to the email.
func (p *Principal) FullName() string {
	if p.IsAnonymous() {
		return ""
	}
	name := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if name == "" {
		return p.Email
	}
	return name
}

// String is used in logs.
func (p *Principal) String() string {
	if p.IsAnonymous() {
		return "anonymous"
	}
	return p.UID + "(" + string(p.Role) + ")"
}
