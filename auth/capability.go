package auth

import "strings"

// Capability is a "resource:action" permission name.
type Capability string

const (
	PolicyRead     Capability = "policy:read"
	PolicyWrite    Capability = "policy:write"
	PolicyActivate Capability = "policy:activate"
	PolicyDelete   Capability = "policy:delete"
	AuditRead      Capability = "audit:read"
)

// grants lists the capability patterns held by each role. Patterns may end
// in '*'. Roles absent from the table hold nothing.
var grants = map[Role][]string{
	RoleAdmin: {"*"},
	RoleManager: {
		string(PolicyRead),
		string(PolicyWrite),
		string(PolicyActivate),
		string(AuditRead),
	},
}

// Can reports whether role holds capability c.
func Can(role Role, c Capability) bool {
	for _, pattern := range grants[role] {
		if matchGlob(pattern, string(c)) {
			return true
		}
	}
	return false
}

// Capabilities returns the grant patterns of role.
func Capabilities(role Role) []string {
	out := make([]string, len(grants[role]))
	copy(out, grants[role])
	return out
}

// matchGlob supports an exact match or a trailing '*'
// ("policy:*" matches "policy:read").
func matchGlob(pattern, value string) bool {
	if pattern == "*" || pattern == value {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
