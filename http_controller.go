package gatekeeper

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthControllerRoutes holds the mount points for the JSON auth endpoints.
type AuthControllerRoutes struct {
	Login      string
	Register   string
	APIKeys    string
	QuotaReset string
}

// AuthController exposes login, registration, API key management, and quota
// administration as JSON endpoints. Route protection (the middleware built by
// New) is applied by the caller when registering routes.
type AuthController struct {
	Logger       Logger
	Repo         RepositoryManager
	Pipeline     *Pipeline
	Tokens       TokenService
	Routes       *AuthControllerRoutes
	ErrorHandler func(router.Context, error) error
}

// AuthControllerOption configures an AuthController.
type AuthControllerOption func(*AuthController) *AuthController

// NewAuthController builds a controller with default routes.
func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Routes: &AuthControllerRoutes{
			Login:      "/auth/login",
			Register:   "/auth/register",
			APIKeys:    "/auth/api-keys",
			QuotaReset: "/auth/quota-reset",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	if c.Logger == nil {
		_, c.Logger = ResolveLogger("gatekeeper.controller", nil, nil)
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = DefaultErrorHandler(c.Logger)
	}

	return c
}

// WithControllerLogger sets the controller logger.
func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = logger
		return c
	}
}

// WithControllerRepo sets the repository manager.
func WithControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithControllerPipeline sets the authorization pipeline.
func WithControllerPipeline(pipeline *Pipeline) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Pipeline = pipeline
		return c
	}
}

// WithControllerTokens sets the token issuer.
func WithControllerTokens(tokens TokenService) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Tokens = tokens
		return c
	}
}

// RegisterAuthRoutes mounts the auth endpoints. protected guards the API key
// and quota endpoints; pass the middleware built by New.
func RegisterAuthRoutes[T any](app router.Router[T], controller *AuthController, protected router.MiddlewareFunc) {
	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login")

	app.
		Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("auth.register")

	app.
		Post(controller.Routes.APIKeys, protected(controller.APIKeyCreate)).
		SetName("auth.api-keys.create")

	app.
		Post(controller.Routes.APIKeys+"/:key_id/revoke", protected(controller.APIKeyRevoke)).
		SetName("auth.api-keys.revoke")

	app.
		Post(controller.Routes.QuotaReset, protected(controller.QuotaReset)).
		SetName("auth.quota-reset")
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// LoginPost verifies credentials and returns a bearer token.
func (c *AuthController) LoginPost(ctx router.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "could not parse login payload"))
	}

	if err := req.Validate(); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "invalid login payload"))
	}

	token, err := c.Pipeline.Login(ctx.Context(), c.Tokens, req.Username, req.Password)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	if user, lookupErr := c.Repo.Users().GetByUsername(ctx.Context(), req.Username); lookupErr == nil && user != nil {
		// best effort; login already succeeded
		if trackErr := c.Repo.Users().TrackLogin(ctx.Context(), user.ID, c.Pipeline.nowFunc()); trackErr != nil {
			c.Logger.Warn("failed to track login", "username", req.Username, "error", trackErr)
		}
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "bearer",
	})
}

// RegistrationCreate creates a new account.
func (c *AuthController) RegistrationCreate(ctx router.Context) error {
	var msg RegisterUserMessage
	if err := ctx.Bind(&msg); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "could not parse registration payload"))
	}

	user, err := NewRegisterUserHandler(c.Repo).Execute(ctx.Context(), msg)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, user)
}

// APIKeyCreate issues an API key for the authenticated user. The raw secret
// appears in this response and nowhere else.
func (c *AuthController) APIKeyCreate(ctx router.Context) error {
	user, err := requireUserIdentity(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	var msg CreateAPIKeyMessage
	if err := ctx.Bind(&msg); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "could not parse api key payload"))
	}
	msg.UserID = user.ID

	issued, err := NewCreateAPIKeyHandler(c.Repo).Execute(ctx.Context(), msg)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, issued)
}

// APIKeyRevoke deactivates one of the caller's keys.
func (c *AuthController) APIKeyRevoke(ctx router.Context) error {
	user, err := requireUserIdentity(ctx)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	keyID := ctx.Param("key_id")
	if keyID == "" {
		return c.ErrorHandler(ctx, badRequest(nil, "key_id is required"))
	}

	revoked, err := c.Repo.APIKeys().Revoke(ctx.Context(), user.ID, keyID)
	if err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "could not revoke api key"))
	}

	if !revoked {
		return c.ErrorHandler(ctx, ErrIdentityNotFound)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"revoked": keyID})
}

// QuotaResetRequest names the bucket to clear.
type QuotaResetRequest struct {
	Key string `json:"key"`
}

func (r QuotaResetRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Key, validation.Required),
	)
}

// QuotaReset clears a rate limit bucket. Admin only.
func (c *AuthController) QuotaReset(ctx router.Context) error {
	authCtx, ok := AuthFromContext(ctx.Context())
	if !ok {
		return c.ErrorHandler(ctx, ErrAuthenticationRequired)
	}
	if !HasRole(authCtx.Identity, RoleAdmin) {
		return c.ErrorHandler(ctx, ErrInsufficientRole)
	}

	var req QuotaResetRequest
	if err := ctx.Bind(&req); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "could not parse quota reset payload"))
	}
	if err := req.Validate(); err != nil {
		return c.ErrorHandler(ctx, badRequest(err, "invalid quota reset payload"))
	}

	if err := c.Pipeline.QuotaTracker().Reset(ctx.Context(), req.Key); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryInternal, "could not reset quota"))
	}

	return ctx.JSON(http.StatusOK, map[string]any{"reset": req.Key})
}

func requireUserIdentity(ctx router.Context) (*User, error) {
	authCtx, ok := AuthFromContext(ctx.Context())
	if !ok {
		return nil, ErrAuthenticationRequired
	}

	identity, ok := authCtx.Identity.(UserIdentity)
	if !ok {
		// API keys cannot mint or revoke other keys
		return nil, ErrInsufficientRole
	}

	return identity.User, nil
}

func badRequest(err error, msg string) error {
	if err == nil {
		return goerrors.New(msg, goerrors.CategoryValidation).
			WithTextCode("VALIDATION_ERROR").
			WithCode(goerrors.CodeBadRequest)
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, msg).
		WithTextCode("VALIDATION_ERROR").
		WithCode(goerrors.CodeBadRequest)
}
