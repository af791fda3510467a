package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders orders and closes as CSV string.
func RenderCSV(trades []TradeRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("recorded_at,instrument,outcome,code,strategy,action,")
	sb.WriteString("quantity,price,realized_pnl,broker_order_id\n")

	// Rows
	for _, t := range trades {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%s,%.6f,%.6f,%.6f,%s\n",
			t.RecordedAt,
			t.Instrument,
			t.Outcome,
			t.Code,
			t.Strategy,
			t.Action,
			t.Quantity,
			t.Price,
			t.RealizedPnL,
			t.BrokerOrderID,
		))
	}

	return sb.String()
}
