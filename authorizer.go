package gatekeeper

// HasRole decides whether the identity satisfies a required role. Admin
// satisfies every role; otherwise the identity's role must match exactly.
// Role requirements only apply to user identities: API keys carry scopes,
// not roles, so they never satisfy a role check.
func HasRole(identity Identity, required UserRole) bool {
	user, ok := identity.(UserIdentity)
	if !ok {
		return false
	}

	if user.User.Role == RoleAdmin {
		return true
	}

	return user.User.Role == required
}

// HasScope decides whether the identity satisfies a required scope. API
// keys check their literal scope set (admin scope satisfies everything);
// user identities derive scopes from their role; Anonymous satisfies
// nothing.
func HasScope(identity Identity, required Scope) bool {
	switch id := identity.(type) {
	case APIKeyIdentity:
		return id.Key.HasScope(required)
	case UserIdentity:
		return roleSatisfiesScope(id.User.Role, required)
	default:
		return false
	}
}

// roleSatisfiesScope maps bearer-token roles onto the scope lattice:
// admin -> everything, user -> read+write, readonly -> read.
func roleSatisfiesScope(role UserRole, required Scope) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return required == ScopeRead || required == ScopeWrite
	case RoleReadonly:
		return required == ScopeRead
	default:
		return false
	}
}
