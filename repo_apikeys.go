package gatekeeper

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// APIKeys is the API key persistence contract.
type APIKeys interface {
	GetByKeyID(ctx context.Context, keyID string) (*APIKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*APIKey, error)

	Create(ctx context.Context, key *APIKey) (*APIKey, error)
	CreateTx(ctx context.Context, tx bun.IDB, key *APIKey) (*APIKey, error)
	Revoke(ctx context.Context, userID uuid.UUID, keyID string) (bool, error)
	TouchUsage(ctx context.Context, keyID string, usedAt time.Time) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type apiKeys struct {
	repository.Repository[*APIKey]
	db *bun.DB
}

// NewAPIKeysRepository will create a new APIKeys repository
func NewAPIKeysRepository(db *bun.DB) APIKeys {
	repo := repository.NewRepository[*APIKey](db, repository.ModelHandlers[*APIKey]{
		NewRecord: func() *APIKey { return &APIKey{} },
		GetID: func(k *APIKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.ID
		},
		SetID: func(k *APIKey, id uuid.UUID) {
			if k != nil {
				k.ID = id
			}
		},
		GetIdentifier: func() string {
			return "key_id"
		},
	})

	return &apiKeys{
		Repository: repo,
		db:         db,
	}
}

func (a *apiKeys) GetByKeyID(ctx context.Context, keyID string) (*APIKey, error) {
	record := &APIKey{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.key_id = ?", keyID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	return record, nil
}

func (a *apiKeys) ListByUser(ctx context.Context, userID uuid.UUID) ([]*APIKey, error) {
	var records []*APIKey
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.is_active = ?", true).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *apiKeys) Create(ctx context.Context, key *APIKey) (*APIKey, error) {
	return a.CreateTx(ctx, a.db, key)
}

func (a *apiKeys) CreateTx(ctx context.Context, tx bun.IDB, key *APIKey) (*APIKey, error) {
	if len(key.Scopes) == 0 {
		key.Scopes = []Scope{ScopeRead}
	}
	if key.Quota.Limit <= 0 || key.Quota.Window <= 0 {
		key.Quota = DefaultKeyQuota
	}
	key.IsActive = true

	return a.Repository.CreateTx(ctx, tx, key)
}

// Revoke flips is_active off for a key owned by the user. Returns false
// when no row matched.
func (a *apiKeys) Revoke(ctx context.Context, userID uuid.UUID, keyID string) (bool, error) {
	res, err := a.db.NewUpdate().
		Model((*APIKey)(nil)).
		Set("is_active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.key_id = ?", keyID).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)

	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

// TouchUsage stamps last_used_at and bumps the request counter. Called from
// the usage recorder, never from the request path.
func (a *apiKeys) TouchUsage(ctx context.Context, keyID string, usedAt time.Time) error {
	_, err := a.db.NewUpdate().
		Model((*APIKey)(nil)).
		Set("last_used_at = ?", usedAt).
		Set("total_requests = total_requests + 1").
		Where("?TableAlias.key_id = ?", keyID).
		Exec(ctx)

	return err
}

// DeactivateExpired flips is_active off for keys past their expiry, a
// maintenance operation.
func (a *apiKeys) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := a.db.NewUpdate().
		Model((*APIKey)(nil)).
		Set("is_active = ?", false).
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at < ?", now).
		Where("?TableAlias.is_active = ?", true).
		Exec(ctx)

	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
