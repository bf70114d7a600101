package domain

const (
	RoleYouth           = "youth"
	RoleSuperOfficial   = "super_official"
	RoleNaturalOfficial = "natural_official"
)

// IsOfficialRole reports whether role is one of the tags an official may hold.
func IsOfficialRole(role string) bool {
	return role == RoleSuperOfficial || role == RoleNaturalOfficial
}

// ContainsRole reports whether role is an element of roles.
func ContainsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// NormalizeOfficialRoles drops unknown tags and duplicates, keeping the first
// occurrence order.
func NormalizeOfficialRoles(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if IsOfficialRole(r) && !ContainsRole(out, r) {
			out = append(out, r)
		}
	}
	return out
}
