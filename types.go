package gatekeeper

import (
	"context"
	"time"
)

// CredentialStore is the persistence boundary for identity lookups. Lookups
// return (nil, nil) when the record does not exist; a non nil error means
// the store itself is unavailable and authentication must fail closed.
type CredentialStore interface {
	FindUserByUsername(ctx context.Context, username string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindAPIKeyByKeyID(ctx context.Context, keyID string) (*APIKey, error)
	RecordAPIKeyUsage(ctx context.Context, keyID string, usedAt time.Time) error
}

// QuotaStore holds sliding-window counters keyed by identity or IP. Get
// returns (nil, nil) for an unknown key. Implementations are shared mutable
// state; Put must replace the whole window atomically for its key.
type QuotaStore interface {
	Get(ctx context.Context, key string) (*QuotaWindow, error)
	Put(ctx context.Context, key string, window *QuotaWindow, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TokenService issues and validates signed access tokens.
type TokenService interface {
	Generate(user *User, ttl time.Duration) (string, error)
	Validate(tokenString string) (*AccessClaims, error)
}

// TokenValidator validates tokens without tying callers to the issuing
// implementation.
type TokenValidator interface {
	Validate(tokenString string) (*AccessClaims, error)
}

// Config holds gatekeeper options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetAnonymousQuota() Quota
}

// SimpleConfig is a literal-friendly Config implementation.
type SimpleConfig struct {
	SigningKey      string
	TokenExpiration int
	Issuer          string
	Audience        []string
	AnonymousQuota  Quota
}

func (c SimpleConfig) GetSigningKey() string   { return c.SigningKey }
func (c SimpleConfig) GetTokenExpiration() int { return c.TokenExpiration }
func (c SimpleConfig) GetIssuer() string       { return c.Issuer }
func (c SimpleConfig) GetAudience() []string   { return c.Audience }

func (c SimpleConfig) GetAnonymousQuota() Quota {
	if c.AnonymousQuota.Limit > 0 && c.AnonymousQuota.Window > 0 {
		return c.AnonymousQuota
	}
	return DefaultAnonymousQuota
}

// DefaultAnonymousQuota applies to unauthenticated traffic keyed by IP.
var DefaultAnonymousQuota = Quota{Limit: 100, Window: 3600}
