package gatekeeper

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTypeAccess is the fixed type tag embedded in every issued token.
// Validation rejects any token whose tag differs, so refresh or reset
// tokens minted elsewhere can never authenticate a request.
const TokenTypeAccess = "access"

// AccessClaims are the structured claims carried by an access token. The
// username travels in the registered subject claim.
type AccessClaims struct {
	jwt.RegisteredClaims
	UID       string   `json:"user_id,omitempty"`
	UserRole  UserRole `json:"role,omitempty"`
	TokenType string   `json:"type,omitempty"`
}

// Username returns the subject claim.
func (c *AccessClaims) Username() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user id claim, falling back to the subject.
func (c *AccessClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the role claim.
func (c *AccessClaims) Role() UserRole {
	return c.UserRole
}

// Expires returns the expiration time, zero when absent.
func (c *AccessClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time, zero when absent.
func (c *AccessClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
