package gatekeeper

// AuthType labels how an identity was established.
type AuthType = string

const (
	// AuthTypeAPIKey means the request carried a valid key_id:raw_key pair
	AuthTypeAPIKey AuthType = "api_key"
	// AuthTypeJWT means the request carried a valid bearer token
	AuthTypeJWT AuthType = "jwt"
	// AuthTypeNone means no credential was accepted
	AuthTypeNone AuthType = "none"
)

// Identity is the resolved principal behind a request. It is a closed sum:
// UserIdentity, APIKeyIdentity, or Anonymous. Exactly one of user/key is
// populated for an authenticated identity; Anonymous carries neither.
type Identity interface {
	// Authenticated reports whether the identity is backed by a credential.
	Authenticated() bool
	// QuotaKey is the identity's rate limit bucket (empty for Anonymous,
	// which is keyed by client IP instead).
	QuotaKey() string

	sealedIdentity()
}

// UserIdentity is a bearer-token principal backed by the live user record.
type UserIdentity struct {
	User *User
}

func (UserIdentity) sealedIdentity()     {}
func (UserIdentity) Authenticated() bool { return true }

func (i UserIdentity) QuotaKey() string {
	return "user:" + i.User.ID.String()
}

// APIKeyIdentity is an API-key principal.
type APIKeyIdentity struct {
	Key *APIKey
}

func (APIKeyIdentity) sealedIdentity()     {}
func (APIKeyIdentity) Authenticated() bool { return true }

func (i APIKeyIdentity) QuotaKey() string {
	return "api_key:" + i.Key.KeyID
}

// Anonymous is the identity of a request with no accepted credential.
type Anonymous struct{}

func (Anonymous) sealedIdentity()     {}
func (Anonymous) Authenticated() bool { return false }
func (Anonymous) QuotaKey() string    { return "" }

// IPQuotaKey builds the fallback bucket for anonymous traffic.
func IPQuotaKey(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// IdentityQuota returns the quota that applies to the identity; anonymous
// identities use the configured anonymous quota.
func IdentityQuota(identity Identity, anonymous Quota) Quota {
	switch id := identity.(type) {
	case UserIdentity:
		return id.User.EffectiveQuota()
	case APIKeyIdentity:
		return id.Key.EffectiveQuota()
	default:
		return anonymous
	}
}
