package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
	"tradegate/internal/storage/migrations"
)

func TestDecisionJournal_InsertAndRange(t *testing.T) {
	conn := setupTestDB(t)

	journal := NewDecisionJournal(conn)
	ctx := context.Background()

	assert.ErrorIs(t, journal.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.NoError(t, journal.InsertBatch(ctx, nil))

	records := []*domain.DecisionRecord{
		{
			Tick: 1704200000, Instrument: "NVDA", Outcome: domain.OutcomeSubmitted,
			Strategy: "golden_cross", Action: domain.ActionBuy,
			BaseConfidence: 0.95, FinalConfidence: 0.9, Quantity: 125, Price: 100,
			Fingerprint: "fp-1", BrokerOrderID: "ord-1", RecordedAt: 1000,
		},
		{
			Tick: 1704200000, Instrument: "AAPL", Outcome: domain.OutcomeRejected,
			Code: domain.ReasonSectorCap, Strategy: "rsi_bounce", Action: domain.ActionBuy,
			BaseConfidence: 0.8, FinalConfidence: 0.7, RecordedAt: 1000,
		},
		{
			Tick: 1704200060, Instrument: "MSFT", Outcome: domain.OutcomeClosed,
			Code: domain.ReasonNone, Quantity: 10, Price: 310, RealizedPnL: -42.5, RecordedAt: 2000,
		},
	}
	require.NoError(t, journal.InsertBatch(ctx, records[:2]))
	require.NoError(t, journal.Insert(ctx, records[2]))

	got, err := journal.GetByTimeRange(ctx, 0, 1500)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Instrument)
	assert.Equal(t, domain.ReasonSectorCap, got[0].Code)
	assert.Equal(t, records[0], got[1])

	got, err = journal.GetByTimeRange(ctx, 2000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, -42.5, got[0].RealizedPnL)
	assert.Equal(t, domain.OutcomeClosed, got[0].Outcome)
}

func TestConn_MigrateSkipsApplied(t *testing.T) {
	conn := setupTestDB(t)
	ctx := context.Background()

	all, err := migrations.Clickhouse()
	require.NoError(t, err)

	applied, err := conn.Migrate(ctx, all)
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Equal(t, "journal_test", conn.Database())
}
