package gatekeeper

import (
	"context"
	"time"
)

// Credentials carries the raw credential material extracted from a request.
// Either or both fields may be empty.
type Credentials struct {
	// APIKey is the raw "key_id:raw_key" pair from header or query.
	APIKey string
	// BearerToken is the raw JWT from the Authorization header.
	BearerToken string
	// ClientIP keys anonymous quota buckets.
	ClientIP string
}

// AuthContext is the per-request authorization decision: who the caller is
// and how much quota they have left.
type AuthContext struct {
	Identity  Identity
	AuthType  AuthType
	RateLimit RateLimitInfo
}

// IsAuthenticated reports whether a credential was accepted.
func (a *AuthContext) IsAuthenticated() bool {
	return a != nil && a.Identity.Authenticated()
}

// Pipeline composes credential verification, authorization resolution, and
// quota tracking into one per-request decision. It is the composition root:
// construct once at startup, share across requests.
type Pipeline struct {
	store     CredentialStore
	keys      *KeyAuthenticator
	validator TokenValidator
	quota     *QuotaTracker
	anonQuota Quota
	logger    Logger
	provider  LoggerProvider
	nowFunc   func() time.Time
}

// NewPipeline wires the pipeline. The usage sink is optional; pass the
// UsageRecorder to persist key usage asynchronously.
func NewPipeline(store CredentialStore, validator TokenValidator, quotaStore QuotaStore, cfg Config, usage UsageSink) *Pipeline {
	provider, logger := ResolveLogger("gatekeeper.pipeline", nil, nil)

	anon := DefaultAnonymousQuota
	if cfg != nil {
		anon = cfg.GetAnonymousQuota()
	}

	return &Pipeline{
		store:     store,
		keys:      NewKeyAuthenticator(store, usage, logger),
		validator: validator,
		quota:     NewQuotaTracker(quotaStore, logger),
		anonQuota: anon,
		logger:    logger,
		provider:  provider,
		nowFunc:   time.Now,
	}
}

// WithLogger overrides the pipeline logger.
func (p *Pipeline) WithLogger(logger Logger) *Pipeline {
	p.provider, p.logger = ResolveLogger("gatekeeper.pipeline", p.provider, logger)
	return p
}

// WithLoggerProvider overrides the logger provider used by the pipeline.
func (p *Pipeline) WithLoggerProvider(provider LoggerProvider) *Pipeline {
	p.provider, p.logger = ResolveLogger("gatekeeper.pipeline", provider, p.logger)
	return p
}

// WithClock overrides the time source on the pipeline and its tracker.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	if now != nil {
		p.nowFunc = now
		p.quota.WithClock(now)
		p.keys.WithClock(now)
	}
	return p
}

// QuotaTracker exposes the tracker for admin operations (quota reset).
func (p *Pipeline) QuotaTracker() *QuotaTracker {
	return p.quota
}

// Authenticate resolves the request identity. API key credentials are
// attempted first; any key failure falls back to the bearer token; if both
// fail the identity is Anonymous, which is a decision, not an error. Only a
// store outage is an error: authentication fails closed rather than
// degrading to Anonymous.
func (p *Pipeline) Authenticate(ctx context.Context, creds Credentials) (*AuthContext, error) {
	if creds.APIKey != "" {
		if keyID, rawKey, ok := SplitAPIKeyCredential(creds.APIKey); ok {
			key, err := p.keys.Authenticate(ctx, keyID, rawKey)
			if err != nil {
				p.logger.Error("api key authentication unavailable", "error", err)
				return nil, ErrCredentialStoreUnavailable
			}
			if key != nil {
				return &AuthContext{
					Identity: APIKeyIdentity{Key: key},
					AuthType: AuthTypeAPIKey,
				}, nil
			}
		}
		// fall through to bearer token on any key failure
	}

	if creds.BearerToken != "" {
		authCtx, err := p.authenticateBearer(ctx, creds.BearerToken)
		if err != nil {
			return nil, err
		}
		if authCtx != nil {
			return authCtx, nil
		}
	}

	return &AuthContext{Identity: Anonymous{}, AuthType: AuthTypeNone}, nil
}

// authenticateBearer validates the token and re-resolves the live user
// record. The token is a capability snapshot, not a cache: role and active
// flag come from the store on every request, so a deactivated user is
// denied immediately even with an unexpired token.
func (p *Pipeline) authenticateBearer(ctx context.Context, raw string) (*AuthContext, error) {
	claims, err := p.validator.Validate(raw)
	if err != nil {
		// invalid tokens degrade to Anonymous; details stay server side
		p.logger.Debug("bearer token rejected", "error", err)
		return nil, nil
	}

	user, err := p.store.FindUserByUsername(ctx, claims.Username())
	if err != nil {
		p.logger.Error("user lookup unavailable", "username", claims.Username(), "error", err)
		return nil, ErrCredentialStoreUnavailable
	}

	if user == nil || !user.IsActive {
		p.logger.Warn("bearer token for missing or inactive user", "username", claims.Username())
		return nil, nil
	}

	return &AuthContext{
		Identity: UserIdentity{User: user},
		AuthType: AuthTypeJWT,
	}, nil
}

// RequireAuthentication denies anonymous identities.
func (p *Pipeline) RequireAuthentication(authCtx *AuthContext) error {
	if !authCtx.IsAuthenticated() {
		return ErrAuthenticationRequired
	}
	return nil
}

// RequireRole denies identities that do not satisfy the role. Anonymous
// identities fail the authentication requirement first.
func (p *Pipeline) RequireRole(authCtx *AuthContext, role UserRole) error {
	if err := p.RequireAuthentication(authCtx); err != nil {
		return err
	}
	if !HasRole(authCtx.Identity, role) {
		return ErrInsufficientRole
	}
	return nil
}

// RequireScope denies identities that do not satisfy the scope.
func (p *Pipeline) RequireScope(authCtx *AuthContext, scope Scope) error {
	if err := p.RequireAuthentication(authCtx); err != nil {
		return err
	}
	if !HasScope(authCtx.Identity, scope) {
		return ErrInsufficientScope
	}
	return nil
}

// CheckQuota runs the sliding-window check for the resolved identity,
// falling back to the client IP bucket for anonymous traffic. The result is
// recorded on the AuthContext either way so callers can emit rate limit
// headers on success responses too.
func (p *Pipeline) CheckQuota(ctx context.Context, authCtx *AuthContext, clientIP string) (RateLimitInfo, error) {
	key := authCtx.Identity.QuotaKey()
	if key == "" {
		key = IPQuotaKey(clientIP)
	}

	quota := IdentityQuota(authCtx.Identity, p.anonQuota)

	info, err := p.quota.Check(ctx, key, quota)
	authCtx.RateLimit = info

	if err != nil {
		p.logger.Info("request rejected by quota",
			"key", key,
			"limit", info.Limit,
			"reset", info.ResetTime,
		)
		return info, err
	}

	return info, nil
}

// Login verifies a username/password pair against the live user record and
// issues an access token. The failure mode is uniform: unknown user,
// inactive account, and wrong password all return
// ErrMismatchedHashAndPassword.
func (p *Pipeline) Login(ctx context.Context, tokens TokenService, username, password string) (string, error) {
	user, err := p.store.FindUserByUsername(ctx, username)
	if err != nil {
		p.logger.Error("login lookup unavailable", "username", username, "error", err)
		return "", ErrCredentialStoreUnavailable
	}

	if user == nil || !user.IsActive {
		p.logger.Warn("login rejected for missing or inactive user", "username", username)
		return "", ErrMismatchedHashAndPassword
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		p.logger.Warn("login rejected: bad password", "username", username)
		return "", ErrMismatchedHashAndPassword
	}

	token, err := tokens.Generate(user, 0)
	if err != nil {
		return "", err
	}

	return token, nil
}
