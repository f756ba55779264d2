package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/s2go/demos/internal/config"
)

func TestEventRow(t *testing.T) {
	row := eventRow(7, BodyEvent{Frame: 12, Kind: KindEmptied, Handle: 1<<32 | 3, Tag: 0xffffffff, Cause: "boundary"})
	assert.Equal(t, []any{int64(7), int32(12), "emptied", int64(1<<32 | 3), int64(0xffffffff), int32(0), "boundary"}, row)
}

// openTestDB connects to S2DEMO_TEST_DSN with a fresh schema.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("S2DEMO_TEST_DSN")
	if dsn == "" {
		t.Skip("S2DEMO_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, ResetMigrations(ctx, db.Pool))
	v, err := RunMigrations(ctx, db.Pool, zap.NewNop())
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
	return db
}

func TestJournalRoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewJournalRepo(db)

	runID, err := repo.StartRun(ctx, "emitters", "abc123")
	require.NoError(t, err)

	require.NoError(t, repo.WriteEvents(ctx, runID, []BodyEvent{
		{Frame: 0, Kind: KindCreated, Handle: 1, Tag: 1, Particles: 12},
		{Frame: 50, Kind: KindCreated, Handle: 2, Tag: 1, Particles: 12},
		{Frame: 99, Kind: KindDestroyed, Handle: 1, Tag: 1},
	}))
	require.NoError(t, repo.WriteEvents(ctx, runID, nil))

	created, err := repo.CountEvents(ctx, runID, KindCreated)
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	destroyed, err := repo.CountEvents(ctx, runID, KindDestroyed)
	require.NoError(t, err)
	assert.Equal(t, 1, destroyed)

	require.NoError(t, repo.FinishRun(ctx, runID, RunSummary{Frames: 100, BodiesCreated: 2, BodiesExpired: 1, LiveBodies: 1}))
	assert.Error(t, repo.FinishRun(ctx, runID+1000, RunSummary{}))
}
