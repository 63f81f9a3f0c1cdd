package gatekeeper

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Users() Users
	APIKeys() APIKeys
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
}

type mngr struct {
	db      *bun.DB
	users   Users
	apiKeys APIKeys
}

// NewRepositoryManager builds the repository set over a bun database.
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:      db,
		users:   NewUsersRepository(db),
		apiKeys: NewAPIKeysRepository(db),
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) APIKeys() APIKeys {
	return m.apiKeys
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.apiKeys == nil {
		return errors.New("repository apiKeys should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// StoreAdapter exposes a RepositoryManager as the CredentialStore consumed
// by the pipeline. Not-found lookups become nil records; everything else is
// a store error the pipeline fails closed on.
type StoreAdapter struct {
	repo RepositoryManager
}

// NewStoreAdapter wraps a repository manager.
func NewStoreAdapter(repo RepositoryManager) *StoreAdapter {
	return &StoreAdapter{repo: repo}
}

func (s *StoreAdapter) FindUserByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.Users().GetByUsername(ctx, username)
}

func (s *StoreAdapter) FindUserByID(ctx context.Context, id string) (*User, error) {
	return s.repo.Users().GetByID(ctx, id)
}

func (s *StoreAdapter) FindAPIKeyByKeyID(ctx context.Context, keyID string) (*APIKey, error) {
	return s.repo.APIKeys().GetByKeyID(ctx, keyID)
}

func (s *StoreAdapter) RecordAPIKeyUsage(ctx context.Context, keyID string, usedAt time.Time) error {
	return s.repo.APIKeys().TouchUsage(ctx, keyID, usedAt)
}

var _ CredentialStore = (*StoreAdapter)(nil)
