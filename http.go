package gatekeeper

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Rate limit response headers.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// MiddlewareConfig configures the request guard middleware.
type MiddlewareConfig struct {
	Pipeline *Pipeline
	// ContextKey is where the AuthContext is stored in router locals.
	ContextKey string
	// RequiredRole, when set, denies identities without the role.
	RequiredRole UserRole
	// RequiredScope, when set, denies identities without the scope.
	RequiredScope Scope
	// OptionalAuth skips the authentication requirement: the identity is
	// resolved (and rate limited) but Anonymous passes through.
	OptionalAuth bool
	// Filter skips the middleware entirely when it returns true.
	Filter func(router.Context) bool
	// ErrorHandler renders rejections; defaults to JSON problem bodies.
	ErrorHandler func(router.Context, error) error
	Logger       Logger
}

// DefaultContextKey is the router locals key for the AuthContext.
const DefaultContextKey = "auth"

// New builds the request guard middleware: identity resolution, optional
// role/scope enforcement, and the quota check, in that order. Quota runs
// for every request that reaches it, authenticated or not.
func New(cfg MiddlewareConfig) router.MiddlewareFunc {
	if cfg.Pipeline == nil {
		panic("gatekeeper: middleware configuration requires a Pipeline")
	}
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	if cfg.Logger == nil {
		_, cfg.Logger = ResolveLogger("gatekeeper.http", nil, nil)
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler(cfg.Logger)
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			clientIP := ClientIP(ctx)

			authCtx, err := cfg.Pipeline.Authenticate(ctx.Context(), Credentials{
				APIKey:      ExtractAPIKeyCredential(ctx),
				BearerToken: ExtractBearerToken(ctx),
				ClientIP:    clientIP,
			})
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if !cfg.OptionalAuth {
				if err := cfg.Pipeline.RequireAuthentication(authCtx); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			if cfg.RequiredRole != "" && authCtx.IsAuthenticated() {
				if err := cfg.Pipeline.RequireRole(authCtx, cfg.RequiredRole); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			if cfg.RequiredScope != "" && authCtx.IsAuthenticated() {
				if err := cfg.Pipeline.RequireScope(authCtx, cfg.RequiredScope); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			info, err := cfg.Pipeline.CheckQuota(ctx.Context(), authCtx, clientIP)
			SetRateLimitHeaders(ctx, info)
			if err != nil {
				setRetryAfter(ctx, info)
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, authCtx)
			ctx.SetContext(WithAuthContext(ctx.Context(), authCtx))

			return ctx.Next()
		}
	}
}

// ExtractAPIKeyCredential pulls the raw key_id:raw_key pair from the
// X-API-Key header or api_key query parameter, header first.
func ExtractAPIKeyCredential(ctx router.Context) string {
	if v := ctx.Header(APIKeyHeader); v != "" {
		return v
	}
	return ctx.Query(APIKeyQueryParam, "")
}

// ExtractBearerToken pulls the JWT from the Authorization header, if any.
func ExtractBearerToken(ctx router.Context) string {
	auth := ctx.Header(router.HeaderAuthorization)
	const scheme = "Bearer"
	if len(auth) > len(scheme)+1 && strings.EqualFold(auth[:len(scheme)], scheme) {
		return strings.TrimSpace(auth[len(scheme):])
	}
	return ""
}

// ClientIP resolves the caller address for anonymous quota buckets,
// preferring proxy headers.
func ClientIP(ctx router.Context) string {
	if v := ctx.Header("X-Forwarded-For"); v != "" {
		// first hop in the chain is the original client
		if i := strings.IndexByte(v, ','); i > 0 {
			return strings.TrimSpace(v[:i])
		}
		return strings.TrimSpace(v)
	}
	return ctx.Header("X-Real-IP")
}

// SetRateLimitHeaders writes the standard rate limit headers. The reset
// time uses ISO-8601 / RFC 3339.
func SetRateLimitHeaders(ctx router.Context, info RateLimitInfo) {
	if info.Limit <= 0 {
		return
	}
	ctx.SetHeader(HeaderRateLimitLimit, strconv.Itoa(info.Limit))
	ctx.SetHeader(HeaderRateLimitRemaining, strconv.Itoa(info.RequestsRemaining))
	ctx.SetHeader(HeaderRateLimitReset, info.ResetTime.UTC().Format(time.RFC3339))
}

// DefaultErrorHandler renders rejections as JSON. Authentication failures
// are uniform regardless of cause: credential details never reach the
// response body, only the server log.
func DefaultErrorHandler(logger Logger) func(router.Context, error) error {
	if logger == nil {
		_, logger = ResolveLogger("gatekeeper.http", nil, nil)
	}

	return func(ctx router.Context, err error) error {
		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "unexpected authorization error").
				WithCode(errors.CodeInternal)
		}

		logger.Info("request rejected",
			"path", ctx.Path(),
			"text_code", richErr.TextCode,
			"error", richErr.Message,
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		return ctx.JSON(richErr.Code, map[string]any{
			"error": richErr.Message,
			"code":  richErr.TextCode,
		})
	}
}

func setRetryAfter(ctx router.Context, info RateLimitInfo) {
	retry := int(info.RetryAfter(time.Now()).Seconds())
	if retry < 0 {
		retry = 0
	}
	ctx.SetHeader(HeaderRetryAfter, strconv.Itoa(retry))
}
