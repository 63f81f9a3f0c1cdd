// Package gatekeeper provides the request authorization pipeline for API
// services: credential verification (JWT access tokens and API keys),
// role/scope resolution, and sliding-window rate limiting, composed into a
// single per-request decision.
//
// Identity resolution:
//   - Every request is resolved to exactly one Identity: a UserIdentity
//     (bearer token backed by the live user record), an APIKeyIdentity, or
//     Anonymous. API key credentials take precedence over bearer tokens; a
//     failed credential never surfaces as an error to the caller, it simply
//     degrades to Anonymous and authorization denies from there.
//   - Identities are rebuilt from the CredentialStore on every request. A
//     token is a capability snapshot, not a cache: a deactivated user is
//     denied on the next request even while their token is unexpired.
//
// Quota:
//   - QuotaTracker counts requests in the trailing window per identity (per
//     client IP for Anonymous). Rejected requests do not consume quota. A
//     failing QuotaStore fails open; a failing CredentialStore fails closed.
//
// Stores:
//   - CredentialStore and QuotaStore are injected interfaces. The repository
//     layer provides a Bun-backed CredentialStore; adapters/memquota and
//     adapters/redisquota provide quota backends for single-node and shared
//     deployments.
package gatekeeper
