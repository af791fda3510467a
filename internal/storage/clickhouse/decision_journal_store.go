package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"tradegate/internal/domain"
	"tradegate/internal/storage"
)

// DecisionJournal implements storage.DecisionJournal using ClickHouse.
// The table is append-only; rows are never updated.
type DecisionJournal struct {
	conn *Conn
}

// NewDecisionJournal creates a new DecisionJournal.
func NewDecisionJournal(conn *Conn) *DecisionJournal {
	return &DecisionJournal{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionJournal = (*DecisionJournal)(nil)

// Insert appends one record.
func (j *DecisionJournal) Insert(ctx context.Context, r *domain.DecisionRecord) error {
	if r == nil {
		return storage.ErrInvalidInput
	}
	return j.InsertBatch(ctx, []*domain.DecisionRecord{r})
}

// InsertBatch appends records in a single batch.
func (j *DecisionJournal) InsertBatch(ctx context.Context, records []*domain.DecisionRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := j.conn.PrepareBatch(ctx, `
		INSERT INTO decision_journal (
			tick, instrument, outcome, code, strategy, action,
			base_confidence, final_confidence, quantity, price,
			fingerprint, broker_order_id, realized_pnl, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		if r == nil {
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			r.Tick, r.Instrument, string(r.Outcome), string(r.Code), r.Strategy, string(r.Action),
			r.BaseConfidence, r.FinalConfidence, r.Quantity, r.Price,
			r.Fingerprint, r.BrokerOrderID, r.RealizedPnL, r.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves records with RecordedAt within [start, end] (inclusive),
// ordered by RecordedAt then instrument.
func (j *DecisionJournal) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.DecisionRecord, error) {
	query := `
		SELECT tick, instrument, outcome, code, strategy, action,
			base_confidence, final_confidence, quantity, price,
			fingerprint, broker_order_id, realized_pnl, recorded_at
		FROM decision_journal
		WHERE recorded_at >= ? AND recorded_at <= ?
		ORDER BY recorded_at ASC, instrument ASC
	`

	rows, err := j.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func scanDecisions(rows driver.Rows) ([]*domain.DecisionRecord, error) {
	var result []*domain.DecisionRecord
	for rows.Next() {
		var r domain.DecisionRecord
		var outcome, code, action string
		err := rows.Scan(
			&r.Tick, &r.Instrument, &outcome, &code, &r.Strategy, &action,
			&r.BaseConfidence, &r.FinalConfidence, &r.Quantity, &r.Price,
			&r.Fingerprint, &r.BrokerOrderID, &r.RealizedPnL, &r.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Outcome = domain.Outcome(outcome)
		r.Code = domain.RejectReason(code)
		r.Action = domain.Action(action)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return result, nil
}
