// Package auth maps storefront roles onto policy capabilities and verifies
// the bearer tokens that carry them.
package auth

import "fmt"

// Role is the numeric role claim carried in a token.
type Role int

const (
	RoleAdmin     Role = 0
	RoleManager   Role = 1
	RoleOperation Role = 2
	RoleSale      Role = 3
	RoleCustomer  Role = 4
)

var roleNames = map[Role]string{
	RoleAdmin:     "admin",
	RoleManager:   "manager",
	RoleOperation: "operation",
	RoleSale:      "sale",
	RoleCustomer:  "customer",
}

// ParseRole rejects values outside the closed role set.
func ParseRole(n int) (Role, error) {
	r := Role(n)
	if _, ok := roleNames[r]; !ok {
		return 0, fmt.Errorf("auth: unknown role %d", n)
	}
	return r, nil
}

// ParseRoleName maps a role name ("manager") onto its Role.
func ParseRoleName(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("auth: unknown role %q", s)
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}
