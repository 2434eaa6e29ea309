//go:build integration

package store_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/newoon/backoffice-server/internal/database"
	"github.com/newoon/backoffice-server/internal/models"
	"github.com/newoon/backoffice-server/internal/store"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
	repos     *store.Repos
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("backoffice"),
		tcpostgres.WithUsername("backoffice"),
		tcpostgres.WithPassword("backoffice"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.pool, err = database.NewPool(ctx, dsn, database.PoolOptions{MaxConns: 10, MinConns: 1})
	s.Require().NoError(err)
	s.Require().NoError(database.EnsureSchema(ctx, s.pool))
	s.repos = store.NewPostgres(s.pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), "TRUNCATE "+strings.Join(database.Tables[:len(database.Tables)-2], ", ")+", accounts CASCADE")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newClient(email string) *models.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := &models.Account{
		ID: uuid.New(), Kind: models.KindClient, Name: "Client " + email, Email: email,
		Role: models.RoleClient, Status: models.StatusActive, PasswordHash: "hash",
		Address: &models.Address{Address: "1 Main St", Country: "NZ"},
		CreatedAt: now, UpdatedAt: now,
	}
	s.Require().NoError(s.repos.Accounts.Create(context.Background(), a))
	return a
}

func (s *PostgresStoreSuite) TestAccountRoundTripAndUniqueness() {
	ctx := context.Background()
	a := s.newClient("ada@example.com")

	got, err := s.repos.Accounts.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Email, got.Email)
	s.Equal("NZ", got.Address.Country)
	s.Empty(got.Services)

	dup := &models.Account{ID: uuid.New(), Kind: models.KindClient, Email: "ADA@example.com", Role: models.RoleClient, PasswordHash: "x"}
	s.True(errors.Is(s.repos.Accounts.Create(ctx, dup), store.ErrConflict))

	found, err := s.repos.Accounts.FindByLoginIdentifier(ctx, "ada@example.com")
	s.Require().NoError(err)
	s.Equal(a.ID, found.ID)
}

func (s *PostgresStoreSuite) TestAddServiceIsIdempotent() {
	ctx := context.Background()
	a := s.newClient("svc@example.com")
	formID := uuid.New()

	added, err := s.repos.Accounts.AddService(ctx, a.ID, formID)
	s.Require().NoError(err)
	s.True(added)
	added, err = s.repos.Accounts.AddService(ctx, a.ID, formID)
	s.Require().NoError(err)
	s.False(added)

	got, err := s.repos.Accounts.Get(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal([]uuid.UUID{formID}, got.Services)

	_, err = s.repos.Accounts.AddService(ctx, uuid.New(), formID)
	s.True(errors.Is(err, store.ErrNotFound))
}

// TestConcurrentDocumentUpdates checks that exactly one writer wins a version race.
func (s *PostgresStoreSuite) TestConcurrentDocumentUpdates() {
	ctx := context.Background()
	client := s.newClient("doc@example.com")
	doc := &models.Document{
		ID: uuid.New(), ClientID: client.ID, Status: models.OutcomePending,
		TimelineStatus: models.StageCollecting, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.repos.Documents.Create(ctx, doc))

	const writers = 20
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := *doc
			d.TimelineStatus = models.StageScreening
			if err := s.repos.Documents.Update(ctx, &d, 1); err == nil {
				wins.Add(1)
			} else {
				s.True(errors.Is(err, store.ErrConflict))
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	got, err := s.repos.Documents.Get(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), got.Version)
	s.Equal(models.StageScreening, got.TimelineStatus)
}

func (s *PostgresStoreSuite) TestDocumentsOutliveDeletedClient() {
	ctx := context.Background()
	client := s.newClient("gone@example.com")
	doc := &models.Document{
		ID: uuid.New(), ClientID: client.ID, Status: models.OutcomePending,
		TimelineStatus: models.StageCollecting, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.repos.Documents.Create(ctx, doc))

	s.Require().NoError(s.repos.Accounts.Delete(ctx, client.ID))

	got, err := s.repos.Documents.Get(ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(client.ID, got.ClientID)
}

func (s *PostgresStoreSuite) TestMeetingSlotConflict() {
	ctx := context.Background()
	m := &models.Meeting{ID: uuid.New(), RequesterID: uuid.New(), PreferredDate: "2026-11-02", PreferredTime: "10:00", CreatedAt: time.Now()}
	s.Require().NoError(s.repos.Meetings.Create(ctx, m))

	dup := *m
	dup.ID = uuid.New()
	s.True(errors.Is(s.repos.Meetings.Create(ctx, &dup), store.ErrConflict))
}

func (s *PostgresStoreSuite) TestResetTokenConsumedOnce() {
	ctx := context.Background()
	a := s.newClient("reset@example.com")
	now := time.Now()
	s.Require().NoError(s.repos.ResetTokens.Put(ctx, &models.ResetToken{
		AccountID: a.ID, TokenHash: "abc", CreatedAt: now, ExpiresAt: now.Add(30 * time.Minute),
	}))

	_, err := s.repos.ResetTokens.Consume(ctx, "abc", now)
	s.Require().NoError(err)
	_, err = s.repos.ResetTokens.Consume(ctx, "abc", now)
	s.True(errors.Is(err, store.ErrNotFound))
}

func (s *PostgresStoreSuite) TestStageMappingsSeeded() {
	st, err := s.repos.StageMappings.StageFor(context.Background(), "Processing")
	s.Require().NoError(err)
	s.Equal(models.StageProcessing, st)
}
