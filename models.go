package gatekeeper

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleAdmin satisfies every role and scope requirement
	RoleAdmin UserRole = "admin"
	// RoleUser is a regular account (read + write)
	RoleUser UserRole = "user"
	// RoleReadonly can only read
	RoleReadonly UserRole = "readonly"
)

// IsValidRole checks if the role is one of the predefined valid roles
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleAdmin, RoleUser, RoleReadonly:
		return true
	default:
		return false
	}
}

// Scope is a coarse-grained capability attached to an API key
type Scope = string

const (
	// ScopeRead grants read access
	ScopeRead Scope = "read"
	// ScopeWrite grants write access
	ScopeWrite Scope = "write"
	// ScopeAdmin satisfies any required scope
	ScopeAdmin Scope = "admin"
)

// IsValidScope checks if the scope is one of the predefined valid scopes
func IsValidScope(s Scope) bool {
	switch s {
	case ScopeRead, ScopeWrite, ScopeAdmin:
		return true
	default:
		return false
	}
}

// Quota is a per-account request allowance: Limit requests in the trailing
// Window seconds.
type Quota struct {
	Limit  int `bun:"requests" json:"requests,omitempty"`
	Window int `bun:"window" json:"window,omitempty"`
}

// WindowDuration returns the window as a duration.
func (q Quota) WindowDuration() time.Duration {
	return time.Duration(q.Window) * time.Second
}

// DefaultUserQuota applies to users created without an explicit quota.
var DefaultUserQuota = Quota{Limit: 1000, Window: 3600}

// DefaultKeyQuota applies to API keys created without an explicit quota.
var DefaultKeyQuota = Quota{Limit: 500, Window: 3600}

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	FullName      string     `bun:"full_name" json:"full_name,omitempty"`
	Role          UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	IsActive      bool       `bun:"is_active" json:"is_active"`
	IsVerified    bool       `bun:"is_verified" json:"is_verified"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	Quota         Quota      `bun:"embed:rate_limit_" json:"quota"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EffectiveQuota returns the account quota, defaulting when unset.
func (u *User) EffectiveQuota() Quota {
	if u == nil || u.Quota.Limit <= 0 || u.Quota.Window <= 0 {
		return DefaultUserQuota
	}
	return u.Quota
}

// APIKey is the API key model. KeyID is the public half, KeyHash the SHA-256
// digest of the secret half; the raw secret is never stored.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:key"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	KeyID         string     `bun:"key_id,notnull,unique" json:"key_id,omitempty"`
	KeyHash       string     `bun:"key_hash,notnull" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Name          string     `bun:"name,notnull" json:"name,omitempty"`
	Scopes        []Scope    `bun:"scopes" json:"scopes,omitempty"`
	IsActive      bool       `bun:"is_active" json:"is_active"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	LastUsedAt    *time.Time `bun:"last_used_at,nullzero" json:"last_used_at,omitempty"`
	TotalRequests int64      `bun:"total_requests" json:"total_requests"`
	Quota         Quota      `bun:"embed:rate_limit_" json:"quota"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// IsExpired reports whether the key is past its expiry at the given time.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}

// HasScope checks the key's literal scope set. ScopeAdmin satisfies any
// required scope.
func (k *APIKey) HasScope(required Scope) bool {
	for _, s := range k.Scopes {
		if s == ScopeAdmin || s == required {
			return true
		}
	}
	return false
}

// EffectiveQuota returns the key quota, defaulting when unset.
func (k *APIKey) EffectiveQuota() Quota {
	if k == nil || k.Quota.Limit <= 0 || k.Quota.Window <= 0 {
		return DefaultKeyQuota
	}
	return k.Quota
}

// QuotaWindow is the persisted sliding-window state for one quota key: the
// request timestamps still inside the trailing window, oldest first.
type QuotaWindow struct {
	Key        string      `json:"key"`
	Timestamps []time.Time `json:"timestamps"`
}

// Prune drops timestamps at or before the window start and returns the
// retained occupancy. The retained length is the authoritative request
// count for the window.
func (w *QuotaWindow) Prune(now time.Time, window time.Duration) int {
	start := now.Add(-window)
	retained := w.Timestamps[:0]
	for _, ts := range w.Timestamps {
		if ts.After(start) {
			retained = append(retained, ts)
		}
	}
	w.Timestamps = retained
	return len(retained)
}

// Oldest returns the earliest retained timestamp, zero when empty.
func (w *QuotaWindow) Oldest() time.Time {
	if len(w.Timestamps) == 0 {
		return time.Time{}
	}
	return w.Timestamps[0]
}

// RateLimitInfo is the quota decision reported to callers and surfaced in
// rate limit response headers.
type RateLimitInfo struct {
	RequestsMade      int       `json:"requests_made"`
	RequestsRemaining int       `json:"requests_remaining"`
	ResetTime         time.Time `json:"reset_time"`
	Limit             int       `json:"limit"`
	Window            int       `json:"window"`
}

// RetryAfter returns the wait until the window frees up, clamped to >= 0.
func (r RateLimitInfo) RetryAfter(now time.Time) time.Duration {
	wait := r.ResetTime.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
