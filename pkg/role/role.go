// Package role defines the user role hierarchy: subscriber < editor < admin.
// A higher role is granted everything a lower role is.
package role

import (
	"errors"
	"strings"
)

// ErrUnknownRole is returned when a string does not name a role.
var ErrUnknownRole = errors.New("role: unknown role")

// Role is a user role name.
type Role string

// Known roles, lowest to highest.
const (
	Subscriber Role = "subscriber"
	Editor     Role = "editor"
	Admin      Role = "admin"
)

// All lists the roles in ascending order.
var All = []Role{Subscriber, Editor, Admin}

var rank = map[Role]int{
	Subscriber: 1,
	Editor:     2,
	Admin:      3,
}

// Parse converts a string into a Role.
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rank[r]; !ok {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rank[r]
	return ok
}

// Rank returns the position of r in the hierarchy, 0 for unknown roles.
func (r Role) Rank() int {
	return rank[r]
}

// Satisfies reports whether a user holding r may access something that requires required.
// Unknown roles never satisfy anything and are never satisfied.
func (r Role) Satisfies(required Role) bool {
	have, want := rank[r], rank[required]
	return have > 0 && want > 0 && have >= want
}

func (r Role) String() string {
	return string(r)
}
