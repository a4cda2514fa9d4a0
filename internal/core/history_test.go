package core

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(name string) ConversionRecord {
	return ConversionRecord{
		ID:         uuid.New(),
		ClientID:   "203.0.113.7",
		FileName:   name,
		OutputName: name + ".csv",
		Format:     FormatDelimited,
		Separator:  ",",
		Rows:       3,
		HasHeader:  true,
		InputBytes: 42,
		Duration:   15 * time.Millisecond,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMemoryHistory_NewestFirst(t *testing.T) {
	h := NewMemoryHistory(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Record(ctx, record(fmt.Sprintf("f%d", i))))
	}

	got, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "f2", got[0].FileName)
	assert.Equal(t, "f0", got[2].FileName)

	got, err = h.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[1].FileName)
}

func TestMemoryHistory_Wraps(t *testing.T) {
	h := NewMemoryHistory(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, h.Record(ctx, record(fmt.Sprintf("f%d", i))))
	}

	got, err := h.Recent(ctx, 10)
	require.NoError(t, err)

	var names []string
	for _, r := range got {
		names = append(names, r.FileName)
	}
	assert.Equal(t, []string{"f4", "f3", "f2"}, names)
}

func TestMemoryHistory_Empty(t *testing.T) {
	got, err := NewMemoryHistory(0).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestPgHistory runs against a real database when TEST_DATABASE_URL is set.
func TestPgHistory(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Skipping integration test: Postgres not available (%v)", err)
	}

	h := NewPgHistory(pool)
	require.NoError(t, h.EnsureSchema(ctx))
	require.NoError(t, h.EnsureSchema(ctx), "schema creation must be repeatable")

	rec := record("pg-history.txt")
	rec.CreatedAt = time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	require.NoError(t, h.Record(ctx, rec))
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM conversion_history WHERE id = $1", rec.ID)
	})

	got, err := h.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
	assert.Equal(t, rec.FileName, got[0].FileName)
	assert.Equal(t, rec.Format, got[0].Format)
	assert.Equal(t, rec.Duration, got[0].Duration)
	assert.True(t, rec.CreatedAt.Equal(got[0].CreatedAt))
}
