package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tradegate/internal/domain"
	"tradegate/internal/risk"
	"tradegate/internal/storage"
)

// Generator produces daily reports from the decision journal.
type Generator struct {
	journal   storage.DecisionJournal
	riskStore storage.RiskStateStore // optional
	positions storage.PositionStore  // optional
	location  *time.Location
	now       func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. riskStore and positions may be nil.
func NewGenerator(
	journal storage.DecisionJournal,
	riskStore storage.RiskStateStore,
	positions storage.PositionStore,
	location *time.Location,
) *Generator {
	if location == nil {
		location = time.UTC
	}
	return &Generator{
		journal:   journal,
		riskStore: riskStore,
		positions: positions,
		location:  location,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate produces the report for the trading day containing day.
func (g *Generator) Generate(ctx context.Context, day time.Time) (*Report, error) {
	local := day.In(g.location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.location)
	end := start.AddDate(0, 0, 1)

	records, err := g.journal.GetByTimeRange(ctx, start.UnixMilli(), end.UnixMilli()-1)
	if err != nil {
		return nil, fmt.Errorf("load decisions: %w", err)
	}

	r := &Report{
		Date:        start.Format(time.DateOnly),
		GeneratedAt: g.now(),
		Summary:     summarize(records),
		Outcomes:    outcomeRows(records),
		Strategies:  strategyRows(records),
		Trades:      tradeRows(records),
	}

	if g.riskStore != nil {
		st, err := g.riskStore.Load(ctx)
		switch {
		case err == nil:
			r.Risk = riskSection(st)
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("load risk state: %w", err)
		}
	}

	if g.positions != nil {
		list, err := g.positions.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("load positions: %w", err)
		}
		for _, p := range list {
			r.OpenPositions = append(r.OpenPositions, *p)
		}
	}

	return r, nil
}

// summarize computes day totals.
func summarize(records []*domain.DecisionRecord) Summary {
	var s Summary
	ticks := make(map[int64]struct{})
	for _, rec := range records {
		ticks[rec.Tick] = struct{}{}
		s.Decisions++
		switch rec.Outcome {
		case domain.OutcomeSubmitted:
			s.Submitted++
		case domain.OutcomeDuplicate:
			s.Duplicates++
		case domain.OutcomeRejected:
			s.Rejected++
		case domain.OutcomeSkipped:
			s.Skipped++
		case domain.OutcomeFailed:
			s.Failed++
		case domain.OutcomeClosed:
			s.Closes++
			s.RealizedPnL += rec.RealizedPnL
			if rec.RealizedPnL > 0 {
				s.Wins++
			} else {
				s.Losses++
			}
		}
	}
	s.Ticks = len(ticks)
	if s.Closes > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Closes)
	}
	return s
}

// outcomeRows counts decisions by (outcome, code).
func outcomeRows(records []*domain.DecisionRecord) []OutcomeRow {
	type key struct {
		outcome domain.Outcome
		code    domain.RejectReason
	}
	counts := make(map[key]int)
	for _, rec := range records {
		counts[key{rec.Outcome, rec.Code}]++
	}

	rows := make([]OutcomeRow, 0, len(counts))
	for k, n := range counts {
		rows = append(rows, OutcomeRow{Outcome: k.outcome, Code: k.code, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Outcome != rows[j].Outcome {
			return rows[i].Outcome < rows[j].Outcome
		}
		return rows[i].Code < rows[j].Code
	})
	return rows
}

// strategyRows aggregates per strategy. Records without a strategy are ignored.
func strategyRows(records []*domain.DecisionRecord) []StrategyRow {
	byStrategy := make(map[string]*StrategyRow)
	confSum := make(map[string]float64)

	for _, rec := range records {
		if rec.Strategy == "" {
			continue
		}
		row, ok := byStrategy[rec.Strategy]
		if !ok {
			row = &StrategyRow{Strategy: rec.Strategy}
			byStrategy[rec.Strategy] = row
		}
		switch rec.Outcome {
		case domain.OutcomeClosed:
			row.Closes++
			row.RealizedPnL += rec.RealizedPnL
			continue
		case domain.OutcomeSubmitted:
			row.Submitted++
		}
		row.Signals++
		confSum[rec.Strategy] += rec.FinalConfidence
	}

	rows := make([]StrategyRow, 0, len(byStrategy))
	for name, row := range byStrategy {
		if row.Signals > 0 {
			row.MeanConfidence = confSum[name] / float64(row.Signals)
		}
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Strategy < rows[j].Strategy
	})
	return rows
}

// tradeRows keeps orders that reached the broker and applied closes.
func tradeRows(records []*domain.DecisionRecord) []TradeRow {
	var rows []TradeRow
	for _, rec := range records {
		switch rec.Outcome {
		case domain.OutcomeSubmitted, domain.OutcomeDuplicate, domain.OutcomeClosed:
		default:
			continue
		}
		rows = append(rows, TradeRow{
			RecordedAt:    rec.RecordedAt,
			Instrument:    rec.Instrument,
			Outcome:       rec.Outcome,
			Code:          rec.Code,
			Strategy:      rec.Strategy,
			Action:        rec.Action,
			Quantity:      rec.Quantity,
			Price:         rec.Price,
			RealizedPnL:   rec.RealizedPnL,
			BrokerOrderID: rec.BrokerOrderID,
		})
	}
	return rows
}

func riskSection(st *domain.RiskState) *RiskSection {
	return &RiskSection{
		Mode:              risk.ModeOf(*st),
		DailyPnL:          st.DailyPnL,
		DailyTradeCount:   st.DailyTradeCount,
		ConsecutiveWins:   st.ConsecutiveWins,
		ConsecutiveLosses: st.ConsecutiveLosses,
		BreakerTripped:    st.BreakerTripped,
		ReferenceEquity:   st.ReferenceEquity,
	}
}
