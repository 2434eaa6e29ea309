package services

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/newoon/backoffice-server/internal/mailer"
	"github.com/newoon/backoffice-server/internal/metrics"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/storage"
	"github.com/newoon/backoffice-server/internal/store"
)

func TestMain(m *testing.M) {
	bcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

// testEnv wires services over memory repositories with inline notification delivery
type testEnv struct {
	repos   *store.Repos
	files   *storage.LocalStore
	mail    *mailer.LogMailer
	metrics *metrics.Metrics
	notify  *Dispatcher
	logger  *zap.SugaredLogger
	ctx     context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop().Sugar()
	repos := store.NewMemory()
	files, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	require.NoError(t, err)
	m := metrics.New()
	outbox := NewInlineOutbox(NewNotificationDeliverer(repos.Notifications, logger))
	return &testEnv{
		repos:   repos,
		files:   files,
		mail:    mailer.NewLogMailer(logger),
		metrics: m,
		notify:  NewDispatcher(outbox, m, logger),
		logger:  logger,
		ctx:     context.Background(),
	}
}

func (e *testEnv) admin(t *testing.T, username string) *models.Account {
	t.Helper()
	return e.account(t, &models.Account{Kind: models.KindAdministrator, Username: username, Role: models.RoleAdmin})
}

func (e *testEnv) operator(t *testing.T, username string, stage models.Stage) *models.Account {
	t.Helper()
	return e.account(t, &models.Account{
		Kind:          models.KindAdministrator,
		Username:      username,
		Role:          string(stage),
		AssignedStage: stage,
	})
}

func (e *testEnv) client(t *testing.T, name, email string) *models.Account {
	t.Helper()
	return e.account(t, &models.Account{
		Kind:   models.KindClient,
		Name:   name,
		Email:  email,
		Role:   models.RoleClient,
		Status: models.StatusActive,
	})
}

func (e *testEnv) account(t *testing.T, a *models.Account) *models.Account {
	t.Helper()
	a.ID = uuid.New()
	if a.PasswordHash == "" {
		hash, err := hashSecret("secret123")
		require.NoError(t, err)
		a.PasswordHash = hash
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	require.NoError(t, e.repos.Accounts.Create(e.ctx, a))
	// keep CreatedAt ordering strict for "first admin" lookups
	time.Sleep(time.Millisecond)
	return a
}

func (e *testEnv) notifications(t *testing.T, accountID uuid.UUID) []models.Notification {
	t.Helper()
	items, err := e.repos.Notifications.ListByAccount(e.ctx, accountID)
	require.NoError(t, err)
	return items
}

// tickingClock returns a clock that advances one second per call
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}
