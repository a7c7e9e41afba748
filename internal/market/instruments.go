// Package market holds the fixed instrument table: the one mapping from a
// public symbol to the stored columns that carry its price and volume.
package market

import (
	"sort"
	"strings"

	"github.com/nihalnihalani/EnrichedMMCP/pkg/contracts/domain"
)

// Sector names used for grouping comparison results.
const (
	SectorTech   = "tech"
	SectorEquity = "equity"
	SectorCrypto = "crypto"
	SectorMetal  = "metal"
	SectorEnergy = "energy"
	SectorIndex  = "index"
)

// Accessor reads one optional numeric field of a stored row.
type Accessor func(*domain.DailyRow) *float64

// Instrument is one tracked price series.
type Instrument struct {
	Symbol       string
	Aliases      []string
	Name         string
	Sector       string
	PriceColumn  string
	VolumeColumn string
	Price        Accessor
	Volume       Accessor
}

// Describe converts the instrument into its API representation.
func (i Instrument) Describe() domain.Instrument {
	return domain.Instrument{
		Symbol:       i.Symbol,
		Name:         i.Name,
		Sector:       i.Sector,
		PriceColumn:  i.PriceColumn,
		VolumeColumn: i.VolumeColumn,
		Aliases:      append([]string(nil), i.Aliases...),
	}
}

// Table resolves symbols to instruments. It is immutable after construction
// and safe for concurrent use.
type Table struct {
	ordered []Instrument
	lookup  map[string]int
}

var defaultTable = NewTable(instruments())

// Default returns the process-wide instrument table.
func Default() *Table {
	return defaultTable
}

// NewTable indexes the given instruments by symbol and alias.
func NewTable(list []Instrument) *Table {
	t := &Table{
		ordered: list,
		lookup:  make(map[string]int, len(list)*2),
	}
	for i, inst := range list {
		t.lookup[inst.Symbol] = i
		for _, alias := range inst.Aliases {
			t.lookup[alias] = i
		}
	}
	return t
}

// Normalize upper-cases and trims a symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Lookup finds an instrument by symbol or alias, case-insensitively.
func (t *Table) Lookup(symbol string) (Instrument, bool) {
	idx, ok := t.lookup[Normalize(symbol)]
	if !ok {
		return Instrument{}, false
	}
	return t.ordered[idx], true
}

// All returns the instruments in table order.
func (t *Table) All() []Instrument {
	out := make([]Instrument, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Symbols returns the canonical symbols in table order.
func (t *Table) Symbols() []string {
	out := make([]string, len(t.ordered))
	for i, inst := range t.ordered {
		out[i] = inst.Symbol
	}
	return out
}

// AcceptedSymbols returns every symbol and alias the table resolves, sorted.
func (t *Table) AcceptedSymbols() []string {
	out := make([]string, 0, len(t.lookup))
	for s := range t.lookup {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Describe returns the API representation of every instrument.
func (t *Table) Describe() []domain.Instrument {
	out := make([]domain.Instrument, len(t.ordered))
	for i, inst := range t.ordered {
		out[i] = inst.Describe()
	}
	return out
}

// Prices projects a row onto canonical symbols.
func (t *Table) Prices(row *domain.DailyRow) map[string]*float64 {
	out := make(map[string]*float64, len(t.ordered))
	for _, inst := range t.ordered {
		out[inst.Symbol] = inst.Price(row)
	}
	return out
}

func instruments() []Instrument {
	return []Instrument{
		{
			Symbol: "AAPL", Name: "Apple Inc.", Sector: SectorTech,
			PriceColumn: domain.ColApplePrice, VolumeColumn: domain.ColAppleVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.ApplePrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.AppleVol },
		},
		{
			Symbol: "TSLA", Name: "Tesla Inc.", Sector: SectorEquity,
			PriceColumn: domain.ColTeslaPrice, VolumeColumn: domain.ColTeslaVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.TeslaPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.TeslaVol },
		},
		{
			Symbol: "MSFT", Name: "Microsoft Corporation", Sector: SectorTech,
			PriceColumn: domain.ColMicrosoftPrice, VolumeColumn: domain.ColMicrosoftVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.MicrosoftPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.MicrosoftVol },
		},
		{
			Symbol: "GOOGL", Name: "Alphabet Inc.", Sector: SectorTech,
			PriceColumn: domain.ColGooglePrice, VolumeColumn: domain.ColGoogleVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.GooglePrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.GoogleVol },
		},
		{
			Symbol: "NVDA", Name: "NVIDIA Corporation", Sector: SectorTech,
			PriceColumn: domain.ColNvidiaPrice, VolumeColumn: domain.ColNvidiaVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.NvidiaPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.NvidiaVol },
		},
		{
			Symbol: "NFLX", Name: "Netflix Inc.", Sector: SectorEquity,
			PriceColumn: domain.ColNetflixPrice, VolumeColumn: domain.ColNetflixVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.NetflixPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.NetflixVol },
		},
		{
			Symbol: "AMZN", Name: "Amazon.com Inc.", Sector: SectorEquity,
			PriceColumn: domain.ColAmazonPrice, VolumeColumn: domain.ColAmazonVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.AmazonPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.AmazonVol },
		},
		{
			Symbol: "META", Name: "Meta Platforms Inc.", Sector: SectorTech,
			PriceColumn: domain.ColMetaPrice, VolumeColumn: domain.ColMetaVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.MetaPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.MetaVol },
		},
		{
			Symbol: "BTC", Name: "Bitcoin", Sector: SectorCrypto,
			PriceColumn: domain.ColBitcoinPrice, VolumeColumn: domain.ColBitcoinVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.BitcoinPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.BitcoinVol },
		},
		{
			Symbol: "ETH", Name: "Ethereum", Sector: SectorCrypto,
			PriceColumn: domain.ColEthereumPrice, VolumeColumn: domain.ColEthereumVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.EthereumPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.EthereumVol },
		},
		{
			Symbol: "GOLD", Name: "Gold", Sector: SectorMetal,
			PriceColumn: domain.ColGoldPrice, VolumeColumn: domain.ColGoldVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.GoldPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.GoldVol },
		},
		{
			Symbol: "SILVER", Name: "Silver", Sector: SectorMetal,
			PriceColumn: domain.ColSilverPrice, VolumeColumn: domain.ColSilverVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.SilverPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.SilverVol },
		},
		{
			Symbol: "PLATINUM", Name: "Platinum", Sector: SectorMetal,
			PriceColumn: domain.ColPlatinumPrice, VolumeColumn: domain.ColPlatinumVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.PlatinumPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.PlatinumVol },
		},
		{
			Symbol: "COPPER", Name: "Copper", Sector: SectorMetal,
			PriceColumn: domain.ColCopperPrice, VolumeColumn: domain.ColCopperVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.CopperPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.CopperVol },
		},
		{
			Symbol: "OIL", Aliases: []string{"CRUDE_OIL"}, Name: "Crude Oil", Sector: SectorEnergy,
			PriceColumn: domain.ColCrudeOilPrice, VolumeColumn: domain.ColCrudeOilVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.CrudeOilPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.CrudeOilVol },
		},
		{
			Symbol: "NATURAL_GAS", Name: "Natural Gas", Sector: SectorEnergy,
			PriceColumn: domain.ColNaturalGasPrice, VolumeColumn: domain.ColNaturalGasVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.NaturalGasPrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.NaturalGasVol },
		},
		{
			Symbol: "SP500", Aliases: []string{"SPY"}, Name: "S&P 500", Sector: SectorIndex,
			PriceColumn: domain.ColSP500Price,
			Price:       func(r *domain.DailyRow) *float64 { return r.SP500Price },
			Volume:      func(*domain.DailyRow) *float64 { return nil },
		},
		{
			Symbol: "NASDAQ", Aliases: []string{"QQQ"}, Name: "Nasdaq 100", Sector: SectorIndex,
			PriceColumn: domain.ColNasdaq100Price, VolumeColumn: domain.ColNasdaq100Vol,
			Price:  func(r *domain.DailyRow) *float64 { return r.Nasdaq100Price },
			Volume: func(r *domain.DailyRow) *float64 { return r.Nasdaq100Vol },
		},
		{
			Symbol: "BRK", Aliases: []string{"BERKSHIRE"}, Name: "Berkshire Hathaway", Sector: SectorEquity,
			PriceColumn: domain.ColBerkshirePrice, VolumeColumn: domain.ColBerkshireVol,
			Price:  func(r *domain.DailyRow) *float64 { return r.BerkshirePrice },
			Volume: func(r *domain.DailyRow) *float64 { return r.BerkshireVol },
		},
	}
}
