package gatekeeper

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// APIKeyHeader and APIKeyQueryParam are where credentials travel, in the
// form "key_id:raw_key".
const (
	APIKeyHeader     = "X-API-Key"
	APIKeyQueryParam = "api_key"
	apiKeyPrefix     = "sk_"
)

// GenerateAPIKey returns a new public key id and raw secret. Only the
// SHA-256 digest of the secret is persisted; the raw value is shown to the
// owner exactly once.
func GenerateAPIKey() (keyID, rawKey string, err error) {
	id, err := randomToken(16)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate key id")
	}

	secret, err := randomToken(32)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate key secret")
	}

	return apiKeyPrefix + id, apiKeyPrefix + secret, nil
}

func randomToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashAPIKey digests a raw key for storage and comparison. Keys are high
// entropy random tokens, so a fast one-way digest is sufficient; passwords
// go through bcrypt instead (see bcrypt.go).
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// VerifyAPIKey compares a raw key against a stored digest in constant time.
func VerifyAPIKey(rawKey, keyHash string) bool {
	digest := HashAPIKey(rawKey)
	return subtle.ConstantTimeCompare([]byte(digest), []byte(keyHash)) == 1
}

// SplitAPIKeyCredential splits the wire format "key_id:raw_key". The raw
// key half may itself contain colons.
func SplitAPIKeyCredential(credential string) (keyID, rawKey string, ok bool) {
	keyID, rawKey, ok = strings.Cut(credential, ":")
	if !ok || keyID == "" || rawKey == "" {
		return "", "", false
	}
	return keyID, rawKey, true
}

// UsageSink receives successful key authentications for asynchronous
// bookkeeping. Implementations must never block the caller.
type UsageSink interface {
	RecordUsage(keyID string, usedAt time.Time)
}

type noopUsageSink struct{}

func (noopUsageSink) RecordUsage(string, time.Time) {}

// KeyAuthenticator validates API key credentials against the credential
// store.
type KeyAuthenticator struct {
	store   CredentialStore
	usage   UsageSink
	logger  Logger
	nowFunc func() time.Time
}

// NewKeyAuthenticator builds a KeyAuthenticator. A nil sink disables usage
// bookkeeping.
func NewKeyAuthenticator(store CredentialStore, usage UsageSink, logger Logger) *KeyAuthenticator {
	if usage == nil {
		usage = noopUsageSink{}
	}
	if logger == nil {
		_, logger = ResolveLogger("gatekeeper.apikeys", nil, nil)
	}

	return &KeyAuthenticator{
		store:   store,
		usage:   usage,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// WithClock overrides the time source, used by expiry tests.
func (a *KeyAuthenticator) WithClock(now func() time.Time) *KeyAuthenticator {
	if now != nil {
		a.nowFunc = now
	}
	return a
}

// Authenticate resolves a key_id:raw_key pair. It returns (nil, nil) for
// every credential failure: unknown id, inactive, expired, or digest
// mismatch are indistinguishable to callers. A store error is returned
// as is so the pipeline can fail closed.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, keyID, rawKey string) (*APIKey, error) {
	key, err := a.store.FindAPIKeyByKeyID(ctx, keyID)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "api key lookup failed").
			WithTextCode(textCodeStoreUnavailable)
	}

	if key == nil {
		return nil, nil
	}

	if !key.IsActive {
		a.logger.Debug("api key rejected: inactive", "key_id", keyID)
		return nil, nil
	}

	now := a.nowFunc()
	if key.IsExpired(now) {
		a.logger.Warn("api key rejected: expired", "key_id", keyID)
		return nil, nil
	}

	if !VerifyAPIKey(rawKey, key.KeyHash) {
		a.logger.Debug("api key rejected: digest mismatch", "key_id", keyID)
		return nil, nil
	}

	// Usage bookkeeping is fire and forget: the decision is already made.
	a.usage.RecordUsage(keyID, now)

	return key, nil
}
