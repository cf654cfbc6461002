// Package domain defines the persistence models and core value types for
// chats, messages, attachments, and notifications. This file models the
// closed set of user roles and the chat pairing rule between them.
package domain

import "fmt"

// Role is the closed set of user roles known to the platform. Roles are
// issued by the external auth/admin system; this package only validates
// and matches them.
type Role string

const (
	// RoleDocente is a teacher account.
	RoleDocente Role = "docente"
	// RoleEstudiante is a student account.
	RoleEstudiante Role = "estudiante"
	// RoleAdmin is an administrative account. Admins never participate
	// in chats.
	RoleAdmin Role = "admin"
)

// ParseRole converts a raw string into a Role, rejecting anything outside
// the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleDocente, RoleEstudiante, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleDocente, RoleEstudiante, RoleAdmin:
		return true
	default:
		return false
	}
}

// CanChatWith reports whether a chat between r and other is a legal
// pairing. Allowed: docente↔estudiante and estudiante↔estudiante.
// docente↔docente and any pairing involving an admin are rejected.
func (r Role) CanChatWith(other Role) bool {
	switch r {
	case RoleDocente:
		return other == RoleEstudiante
	case RoleEstudiante:
		return other == RoleDocente || other == RoleEstudiante
	case RoleAdmin:
		return false
	default:
		return false
	}
}

// String returns the role as its wire representation.
func (r Role) String() string { return string(r) }
