package domain

import dErrors "github.com/ak652231/TraceQ-sub001/pkg/domain-errors"

// Role is the closed set of actor kinds carried on a resolved identity.
// Invariant: the value is one of RoleReporter or RoleOfficer.
//
// Usage: construct via ParseRole when reading tokens or database rows; compare
// with a switch so a new role forces every call site to be revisited.
type Role string

const (
	// RoleReporter is any member of the public: files cases and sightings and
	// answers verification requests for cases they own.
	RoleReporter Role = "user"
	// RoleOfficer is a police user with PoliceDetails on file.
	RoleOfficer Role = "police"
)

// ParseRole constructs a Role from its wire token.
//
// Errors: CodeInvalidInput when the value is empty or unknown.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleReporter, RoleOfficer:
		return Role(s), nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
}

// IsOfficer reports whether the role may act on sighting reports.
func (r Role) IsOfficer() bool {
	return r == RoleOfficer
}

func (r Role) String() string {
	return string(r)
}
