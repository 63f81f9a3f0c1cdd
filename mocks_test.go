package gatekeeper_test

import (
	"context"
	"database/sql"
	"sync"
	"time"

	auth "github.com/goliatone/go-gatekeeper"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockCredentialStore implements auth.CredentialStore
type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FindUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockCredentialStore) FindUserByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockCredentialStore) FindAPIKeyByKeyID(ctx context.Context, keyID string) (*auth.APIKey, error) {
	args := m.Called(ctx, keyID)
	key, _ := args.Get(0).(*auth.APIKey)
	return key, args.Error(1)
}

func (m *MockCredentialStore) RecordAPIKeyUsage(ctx context.Context, keyID string, usedAt time.Time) error {
	args := m.Called(ctx, keyID, usedAt)
	return args.Error(0)
}

// fakeQuotaStore is a map-backed QuotaStore with switchable failures.
type fakeQuotaStore struct {
	mu      sync.Mutex
	items   map[string]*auth.QuotaWindow
	getErr  error
	putErr  error
	puts    int
	deletes int
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{items: map[string]*auth.QuotaWindow{}}
}

func (s *fakeQuotaStore) Get(_ context.Context, key string) (*auth.QuotaWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	window, ok := s.items[key]
	if !ok {
		return nil, nil
	}
	return &auth.QuotaWindow{
		Key:        window.Key,
		Timestamps: append([]time.Time(nil), window.Timestamps...),
	}, nil
}

func (s *fakeQuotaStore) Put(_ context.Context, key string, window *auth.QuotaWindow, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.puts++
	s.items[key] = &auth.QuotaWindow{
		Key:        window.Key,
		Timestamps: append([]time.Time(nil), window.Timestamps...),
	}
	return nil
}

func (s *fakeQuotaStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.items, key)
	return nil
}

// staticValidator returns canned claims or an error.
type staticValidator struct {
	claims *auth.AccessClaims
	err    error
}

func (v staticValidator) Validate(string) (*auth.AccessClaims, error) {
	return v.claims, v.err
}

// recordingSink captures usage notifications synchronously.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSink) RecordUsage(keyID string, _ time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, keyID)
}

func (s *recordingSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// captureLogger retains log calls for assertions.
type captureLogger struct {
	mu      sync.Mutex
	entries []capturedEntry
}

type capturedEntry struct {
	level string
	msg   string
	args  []any
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) logged() []capturedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]capturedEntry(nil), l.entries...)
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args) }

func (l *captureLogger) WithContext(context.Context) auth.Logger { return l }

// MockRepositoryManager implements auth.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
	users   *MockUsers
	apiKeys *MockAPIKeys
}

func newMockRepositoryManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:   new(MockUsers),
		apiKeys: new(MockAPIKeys),
	}
}

func (m *MockRepositoryManager) Users() auth.Users     { return m.users }
func (m *MockRepositoryManager) APIKeys() auth.APIKeys { return m.apiKeys }
func (m *MockRepositoryManager) Validate() error       { return nil }
func (m *MockRepositoryManager) MustValidate()         {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, _ *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	got, _ := args.Get(0).(*auth.User)
	return got, args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, tx, user)
	got, _ := args.Get(0).(*auth.User)
	return got, args.Error(1)
}

func (m *MockUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockUsers) TrackLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockAPIKeys implements auth.APIKeys
type MockAPIKeys struct {
	mock.Mock
}

func (m *MockAPIKeys) GetByKeyID(ctx context.Context, keyID string) (*auth.APIKey, error) {
	args := m.Called(ctx, keyID)
	key, _ := args.Get(0).(*auth.APIKey)
	return key, args.Error(1)
}

func (m *MockAPIKeys) ListByUser(ctx context.Context, userID uuid.UUID) ([]*auth.APIKey, error) {
	args := m.Called(ctx, userID)
	keys, _ := args.Get(0).([]*auth.APIKey)
	return keys, args.Error(1)
}

func (m *MockAPIKeys) Create(ctx context.Context, key *auth.APIKey) (*auth.APIKey, error) {
	args := m.Called(ctx, key)
	got, _ := args.Get(0).(*auth.APIKey)
	return got, args.Error(1)
}

func (m *MockAPIKeys) CreateTx(ctx context.Context, tx bun.IDB, key *auth.APIKey) (*auth.APIKey, error) {
	args := m.Called(ctx, tx, key)
	got, _ := args.Get(0).(*auth.APIKey)
	return got, args.Error(1)
}

func (m *MockAPIKeys) Revoke(ctx context.Context, userID uuid.UUID, keyID string) (bool, error) {
	args := m.Called(ctx, userID, keyID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAPIKeys) TouchUsage(ctx context.Context, keyID string, usedAt time.Time) error {
	args := m.Called(ctx, keyID, usedAt)
	return args.Error(0)
}

func (m *MockAPIKeys) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockContext mocks router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}
