package gatekeeper

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateAPIKeyMessage issues a new API key for a user. The raw secret is
// returned exactly once; only its hash is stored.
type CreateAPIKeyMessage struct {
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Scopes    []Scope    `json:"scopes"`
	Quota     Quota      `json:"quota"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (e CreateAPIKeyMessage) Type() string { return "api_key.create" }

func (e CreateAPIKeyMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.UserID, validation.By(validateUserID)),
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Scopes, validation.By(validateScopes)),
	)
}

func validateUserID(value any) error {
	id, _ := value.(uuid.UUID)
	if id == uuid.Nil {
		return goerrors.New("is required", goerrors.CategoryValidation)
	}
	return nil
}

func validateScopes(value any) error {
	scopes, _ := value.([]Scope)
	for _, s := range scopes {
		if !IsValidScope(s) {
			return goerrors.New("must contain known scopes", goerrors.CategoryValidation)
		}
	}
	return nil
}

// IssuedAPIKey carries the persisted record plus the one-time raw secret in
// key_id:raw_key form.
type IssuedAPIKey struct {
	Key        *APIKey `json:"key"`
	Credential string  `json:"credential"`
}

type CreateAPIKeyHandler struct {
	repo RepositoryManager
}

func NewCreateAPIKeyHandler(repo RepositoryManager) *CreateAPIKeyHandler {
	return &CreateAPIKeyHandler{repo: repo}
}

func (h *CreateAPIKeyHandler) Execute(ctx context.Context, event CreateAPIKeyMessage) (*IssuedAPIKey, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during api key creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAPIKeyHandler) execute(ctx context.Context, event CreateAPIKeyMessage) (*IssuedAPIKey, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid api key request").
			WithTextCode("VALIDATION_ERROR").
			WithCode(goerrors.CodeBadRequest)
	}

	keyID, rawKey, err := GenerateAPIKey()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate api key material")
	}

	key := &APIKey{
		KeyID:     keyID,
		KeyHash:   HashAPIKey(rawKey),
		UserID:    event.UserID,
		Name:      event.Name,
		Scopes:    event.Scopes,
		Quota:     event.Quota,
		ExpiresAt: event.ExpiresAt,
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		owner, err := h.repo.Users().GetByID(ctx, event.UserID.String())
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not load key owner")
		}
		if owner == nil || !owner.IsActive {
			return ErrIdentityNotFound
		}

		if key, err = h.repo.APIKeys().CreateTx(ctx, tx, key); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create api key")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "api key creation transaction failed")
	}

	return &IssuedAPIKey{
		Key:        key,
		Credential: keyID + ":" + rawKey,
	}, nil
}
