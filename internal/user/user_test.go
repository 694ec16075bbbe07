package user

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/safebite/server/internal/models"
)

func newTestRepo(t *testing.T) *UserRepository {
	t.Helper()
	sqldb, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })

	repo := NewUserRepository(bun.NewDB(sqldb, sqlitedialect.New()))
	require.NoError(t, repo.InitializeDatabase(context.Background()))
	return repo
}

func TestGetOrCreateProvisionsOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	created, err := repo.GetOrCreate(ctx, "user-1", "ana@example.com", "Ana", "Ruiz", "Europe/Madrid")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Europe/Madrid", created.TrialTimezone)
	assert.False(t, created.TrialStartedAt.IsZero())

	again, err := repo.GetOrCreate(ctx, "user-1", "other@example.com", "Other", "Name", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", again.Email, "an existing user keeps its original row")
	assert.Equal(t, created.TrialStartedAt.UTC(), again.TrialStartedAt.UTC(),
		"the trial anchor never moves after first sight")
}

func TestGetOrCreateDefaultsTimezone(t *testing.T) {
	repo := newTestRepo(t)

	u, err := repo.GetOrCreate(context.Background(), "user-2", "bo@example.com", "Bo", "Li", "")
	require.NoError(t, err)
	assert.Equal(t, "UTC", u.TrialTimezone)
}

func TestCreateIfAbsentLosingRaceKeepsWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	winner := &models.User{
		ID:             "user-3",
		Email:          "first@example.com",
		TrialStartedAt: time.Now().UTC().Add(-48 * time.Hour),
		TrialTimezone:  "America/New_York",
	}
	require.NoError(t, repo.Create(ctx, winner))

	// A request that missed the read and inserts second must not fail on the
	// primary key, and must not overwrite the winner's anchor.
	loser := &models.User{
		ID:             "user-3",
		Email:          "second@example.com",
		TrialStartedAt: time.Now().UTC(),
		TrialTimezone:  "UTC",
	}
	require.NoError(t, repo.createIfAbsent(ctx, loser))

	got, err := repo.GetByID(ctx, "user-3")
	require.NoError(t, err)
	assert.Equal(t, "first@example.com", got.Email)
	assert.Equal(t, "America/New_York", got.TrialTimezone)
}

func TestGetOrCreateAfterRaceReturnsWinner(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	winner := &models.User{
		ID:             "user-4",
		Email:          "winner@example.com",
		TrialStartedAt: time.Now().UTC().Add(-24 * time.Hour),
		TrialTimezone:  "UTC",
	}
	require.NoError(t, repo.Create(ctx, winner))

	got, err := repo.GetOrCreate(ctx, "user-4", "loser@example.com", "", "", "UTC")
	require.NoError(t, err)
	assert.Equal(t, "winner@example.com", got.Email)
}
