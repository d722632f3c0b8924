package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/database"
	"github.com/globetrotter/globetrotter-api/internal/domain"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testSecret = "abcdefghijklmnopqrstuvwxyz123456"
	testPepper = "pepper-for-tests"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db          *gorm.DB
	clock       *testClock
	issuer      *security.TokenIssuer
	hasher      *security.PasswordHasher
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	resetRepo   repository.PasswordResetRepository
	revokedRepo repository.RevokedTokenRepository
	tokens      *TokenService
	sessions    *SessionService
	revocations *RevocationService
	resets      *PasswordResetService
	notifier    *recordingNotifier
	auth        *AuthService
	profiles    *ProfileService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithCache(t, NewInMemoryRevocationCacheStore())
}

func newTestEnvWithCache(t *testing.T, cache RevocationCacheStore) *testEnv {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite:file:svc_" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := database.OpenWithLogger(ctx, dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	if err := database.AutoMigrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{db: db, clock: newTestClock(), notifier: &recordingNotifier{}}
	env.issuer = security.NewTokenIssuer("globetrotter-api", "globetrotter-web", testSecret, 15*time.Minute).WithClock(env.clock.Now)
	env.hasher = security.NewPasswordHasher(bcrypt.MinCost)
	env.userRepo = repository.NewUserRepository(db)
	env.sessionRepo = repository.NewSessionRepository(db)
	env.resetRepo = repository.NewPasswordResetRepository(db)
	env.revokedRepo = repository.NewRevokedTokenRepository(db)
	env.tokens = NewTokenService(env.issuer, env.sessionRepo, testPepper, 30*24*time.Hour).WithClock(env.clock.Now)
	env.sessions = NewSessionService(env.sessionRepo, testPepper)
	env.sessions.now = env.clock.Now
	env.revocations = NewRevocationService(env.issuer, env.revokedRepo, cache, testPepper, nil)
	env.revocations.now = env.clock.Now
	env.resets = NewPasswordResetService(env.resetRepo, env.hasher, testPepper, time.Hour).WithClock(env.clock.Now)
	env.auth = NewAuthService(env.userRepo, env.hasher, env.tokens, env.sessions, env.revocations, env.resets, env.notifier, ResetTokenExposure(true), nil)
	env.profiles = NewProfileService(env.userRepo, env.hasher, env.revocations, nil)
	return env
}

func (e *testEnv) signup(t *testing.T, email, password string) *LoginResult {
	t.Helper()
	res, err := e.auth.Signup(context.Background(), email, password, SessionMeta{UserAgent: "test-agent", IP: "127.0.0.1"})
	if err != nil {
		t.Fatalf("signup %s: %v", email, err)
	}
	return res
}

type recordingNotifier struct {
	mu     sync.Mutex
	tokens []string
}

func (n *recordingNotifier) NotifyPasswordReset(_ context.Context, _ *domain.User, token string, _ time.Time) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, token)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.tokens)
}

func (n *recordingNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.tokens) == 0 {
		return ""
	}
	return n.tokens[len(n.tokens)-1]
}
