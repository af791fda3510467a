package backends

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
	"tradegate/internal/storage/file"
	"tradegate/internal/storage/memory"
)

func TestOpen_Memory(t *testing.T) {
	stores, closeFn, err := Open(context.Background(), Options{Backend: Memory, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &memory.RiskStateStore{}, stores.RiskState)
	assert.IsType(t, &memory.PositionStore{}, stores.Positions)
	assert.IsType(t, &memory.IdempotencyStore{}, stores.Idempotency)
	assert.IsType(t, &memory.DecisionJournal{}, stores.Journal)
}

func TestOpen_File(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	stores, closeFn, err := Open(ctx, Options{Backend: File, Dir: dir, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer closeFn()

	assert.IsType(t, &file.RiskStateStore{}, stores.RiskState)

	_, err = stores.RiskState.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, stores.Positions.Upsert(ctx, &domain.Position{
		Instrument: "AAPL",
		ID:         "p-1",
		EntryPrice: 100,
		Quantity:   10,
	}))
	_, err = os.Stat(filepath.Join(dir, file.PositionsFile))
	assert.NoError(t, err)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "unknown backend", opts: Options{Backend: "sqlite"}},
		{name: "file without dir", opts: Options{Backend: File}},
		{name: "bad postgres dsn", opts: Options{Backend: Postgres, PostgresDSN: "postgres://%zz"}},
		{name: "bad redis url", opts: Options{Backend: Memory, RedisURL: "not-a-url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stores, closeFn, err := Open(context.Background(), tt.opts)
			assert.Error(t, err)
			assert.Nil(t, stores)
			require.NotNil(t, closeFn)
			closeFn()
		})
	}
}
