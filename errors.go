package gatekeeper

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeTokenExpired     = "AUTH_TOKEN_EXPIRED"
	textCodeTokenMalformed   = "AUTH_TOKEN_MALFORMED"
	textCodeAuthRequired     = "AUTH_REQUIRED"
	textCodeBadCredentials   = "INVALID_CREDENTIALS"
	textCodeIdentityNotFound = "IDENTITY_NOT_FOUND"
	textCodeWeakPassword     = "WEAK_PASSWORD"
	textCodeEmptySecret      = "EMPTY_SECRET"
	textCodeInsufficientRole = "INSUFFICIENT_ROLE"
	textCodeMissingScope     = "INSUFFICIENT_SCOPE"
	textCodeQuotaExceeded    = "QUOTA_EXCEEDED"
	textCodeStoreUnavailable = "CREDENTIAL_STORE_UNAVAILABLE"
)

// ErrTokenExpired is returned when an access token is past its expiry.
var ErrTokenExpired = goerrors.New("access token expired", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed covers bad signatures, wrong signing methods, and
// missing or mismatched token type tags.
var ErrTokenMalformed = goerrors.New("invalid access token", goerrors.CategoryAuth).
	WithTextCode(textCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrAuthenticationRequired is returned when a protected operation is
// reached with an anonymous identity.
var ErrAuthenticationRequired = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(textCodeAuthRequired).
	WithCode(goerrors.CodeUnauthorized)

// ErrMismatchedHashAndPassword is the uniform bad-credentials error. It is
// deliberately indistinguishable from "no such account" in responses.
var ErrMismatchedHashAndPassword = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(textCodeBadCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
	WithTextCode(textCodeIdentityNotFound).
	WithCode(goerrors.CodeUnauthorized)

// ErrWeakPassword is returned by the password strength gate at registration
// and password change time.
var ErrWeakPassword = goerrors.New(
	"password must be at least 8 characters and mix upper case, lower case, digits, or symbols",
	goerrors.CategoryValidation,
).
	WithTextCode(textCodeWeakPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString rejects empty secrets before they reach a hasher.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(textCodeEmptySecret).
	WithCode(goerrors.CodeBadRequest)

// ErrInsufficientRole is returned when the identity role does not satisfy
// the required role.
var ErrInsufficientRole = goerrors.New("insufficient role", goerrors.CategoryAuthz).
	WithTextCode(textCodeInsufficientRole).
	WithCode(goerrors.CodeForbidden)

// ErrInsufficientScope is returned when the identity scope set does not
// satisfy the required scope.
var ErrInsufficientScope = goerrors.New("insufficient scope", goerrors.CategoryAuthz).
	WithTextCode(textCodeMissingScope).
	WithCode(goerrors.CodeForbidden)

// ErrQuotaExceeded is returned when the sliding window is full. The limit
// and reset details travel in the rate limit response headers.
var ErrQuotaExceeded = goerrors.New("rate limit exceeded", goerrors.CategoryOperation).
	WithTextCode(textCodeQuotaExceeded).
	WithCode(http.StatusTooManyRequests)

// ErrCredentialStoreUnavailable signals that authentication could not be
// decided. The pipeline fails closed on it.
var ErrCredentialStoreUnavailable = goerrors.New("credential store unavailable", goerrors.CategoryInternal).
	WithTextCode(textCodeStoreUnavailable).
	WithCode(http.StatusServiceUnavailable)

func hasTextCode(err error, textCode string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == textCode
	}
	return false
}

// IsTokenExpiredError will check for expired tokens, including legacy
// string-matched errors from other JWT layers.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedTokenError will check for malformed token errors.
func IsMalformedTokenError(err error) bool {
	if err == nil {
		return false
	}
	if hasTextCode(err, textCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsQuotaExceededError reports whether err is a quota rejection.
func IsQuotaExceededError(err error) bool {
	return hasTextCode(err, textCodeQuotaExceeded)
}

// IsCredentialStoreError reports whether err means authentication could not
// be decided and the request must fail closed.
func IsCredentialStoreError(err error) bool {
	return hasTextCode(err, textCodeStoreUnavailable)
}
