package risk

import "strings"

// DefaultSectors maps the stock universe to diversification sectors.
var DefaultSectors = map[string][]string{
	"TECH":      {"AAPL", "MSFT", "GOOGL", "META", "NVDA", "AMD", "NFLX"},
	"AUTO":      {"TSLA", "RIVN", "LCID"},
	"ECOMMERCE": {"AMZN", "SHOP", "BABA"},
	"FINTECH":   {"COIN", "SQ", "SOFI", "HOOD"},
	"CRYPTO":    {"MARA", "RIOT", "MSTR"},
	"GAMING":    {"RBLX", "DKNG"},
	"SERVICES":  {"PLTR", "ZM", "SNAP", "UPST", "ROKU", "DASH", "CLOV", "WISH"},
}

// DefaultLotSize is the smallest tradable quantity step.
const DefaultLotSize = 0.1

// Instruments holds static per-instrument facts: sector and lot size.
type Instruments struct {
	sectors  map[string]string
	lotSize  float64
	lotSizes map[string]float64
}

// NewInstruments builds the lookup from sector -> instruments. An instrument
// listed under several sectors keeps the lexically first sector.
// lotSizes overrides lotSize per instrument.
func NewInstruments(sectors map[string][]string, lotSize float64, lotSizes map[string]float64) *Instruments {
	in := &Instruments{
		sectors:  make(map[string]string),
		lotSize:  lotSize,
		lotSizes: make(map[string]float64, len(lotSizes)),
	}
	for sector, instruments := range sectors {
		for _, inst := range instruments {
			key := strings.ToUpper(inst)
			if prev, ok := in.sectors[key]; ok && prev < sector {
				continue
			}
			in.sectors[key] = sector
		}
	}
	for inst, lot := range lotSizes {
		in.lotSizes[strings.ToUpper(inst)] = lot
	}
	return in
}

// SectorOf returns the instrument's sector, or "" if unmapped.
// Unmapped instruments only count against the global cap.
func (in *Instruments) SectorOf(instrument string) string {
	if in == nil {
		return ""
	}
	return in.sectors[strings.ToUpper(instrument)]
}

// LotSize returns the tradable unit for an instrument.
func (in *Instruments) LotSize(instrument string) float64 {
	if in == nil {
		return DefaultLotSize
	}
	if lot, ok := in.lotSizes[strings.ToUpper(instrument)]; ok {
		return lot
	}
	return in.lotSize
}
