package domain

import (
	"time"
)

// Stored column names of the stock_data table.
const (
	ColumnID   = "id"
	ColumnDate = "date"

	ColNaturalGasPrice = "natural_gas_price"
	ColNaturalGasVol   = "natural_gas_vol"
	ColCrudeOilPrice   = "crude_oil_price"
	ColCrudeOilVol     = "crude_oil_vol"
	ColCopperPrice     = "copper_price"
	ColCopperVol       = "copper_vol"
	ColBitcoinPrice    = "bitcoin_price"
	ColBitcoinVol      = "bitcoin_vol"
	ColPlatinumPrice   = "platinum_price"
	ColPlatinumVol     = "platinum_vol"
	ColEthereumPrice   = "ethereum_price"
	ColEthereumVol     = "ethereum_vol"
	ColSP500Price      = "s_p_500_price"
	ColNasdaq100Price  = "nasdaq_100_price"
	ColNasdaq100Vol    = "nasdaq_100_vol"
	ColApplePrice      = "apple_price"
	ColAppleVol        = "apple_vol"
	ColTeslaPrice      = "tesla_price"
	ColTeslaVol        = "tesla_vol"
	ColMicrosoftPrice  = "microsoft_price"
	ColMicrosoftVol    = "microsoft_vol"
	ColSilverPrice     = "silver_price"
	ColSilverVol       = "silver_vol"
	ColGooglePrice     = "google_price"
	ColGoogleVol       = "google_vol"
	ColNvidiaPrice     = "nvidia_price"
	ColNvidiaVol       = "nvidia_vol"
	ColBerkshirePrice  = "berkshire_price"
	ColBerkshireVol    = "berkshire_vol"
	ColNetflixPrice    = "netflix_price"
	ColNetflixVol      = "netflix_vol"
	ColAmazonPrice     = "amazon_price"
	ColAmazonVol       = "amazon_vol"
	ColMetaPrice       = "meta_price"
	ColMetaVol         = "meta_vol"
	ColGoldPrice       = "gold_price"
	ColGoldVol         = "gold_vol"
)

// DailyRow is one trading day of the stock_data table. Every numeric column
// is optional; a nil pointer means the source had no value for that day.
type DailyRow struct {
	ID   int64     `json:"id"`
	Date time.Time `json:"date"`

	NaturalGasPrice *float64 `json:"natural_gas_price"`
	NaturalGasVol   *float64 `json:"natural_gas_vol"`
	CrudeOilPrice   *float64 `json:"crude_oil_price"`
	CrudeOilVol     *float64 `json:"crude_oil_vol"`
	CopperPrice     *float64 `json:"copper_price"`
	CopperVol       *float64 `json:"copper_vol"`
	BitcoinPrice    *float64 `json:"bitcoin_price"`
	BitcoinVol      *float64 `json:"bitcoin_vol"`
	PlatinumPrice   *float64 `json:"platinum_price"`
	PlatinumVol     *float64 `json:"platinum_vol"`
	EthereumPrice   *float64 `json:"ethereum_price"`
	EthereumVol     *float64 `json:"ethereum_vol"`
	SP500Price      *float64 `json:"s_p_500_price"`
	Nasdaq100Price  *float64 `json:"nasdaq_100_price"`
	Nasdaq100Vol    *float64 `json:"nasdaq_100_vol"`
	ApplePrice      *float64 `json:"apple_price"`
	AppleVol        *float64 `json:"apple_vol"`
	TeslaPrice      *float64 `json:"tesla_price"`
	TeslaVol        *float64 `json:"tesla_vol"`
	MicrosoftPrice  *float64 `json:"microsoft_price"`
	MicrosoftVol    *float64 `json:"microsoft_vol"`
	SilverPrice     *float64 `json:"silver_price"`
	SilverVol       *float64 `json:"silver_vol"`
	GooglePrice     *float64 `json:"google_price"`
	GoogleVol       *float64 `json:"google_vol"`
	NvidiaPrice     *float64 `json:"nvidia_price"`
	NvidiaVol       *float64 `json:"nvidia_vol"`
	BerkshirePrice  *float64 `json:"berkshire_price"`
	BerkshireVol    *float64 `json:"berkshire_vol"`
	NetflixPrice    *float64 `json:"netflix_price"`
	NetflixVol      *float64 `json:"netflix_vol"`
	AmazonPrice     *float64 `json:"amazon_price"`
	AmazonVol       *float64 `json:"amazon_vol"`
	MetaPrice       *float64 `json:"meta_price"`
	MetaVol         *float64 `json:"meta_vol"`
	GoldPrice       *float64 `json:"gold_price"`
	GoldVol         *float64 `json:"gold_vol"`
}

// ColumnRef binds a stored column name to the field that holds it.
type ColumnRef struct {
	Name  string
	Field **float64
}

// NumericColumns returns references to every numeric field of the row, in
// table order. Storage scanning and ingestion go through this list so the
// column set is declared exactly once.
func (r *DailyRow) NumericColumns() []ColumnRef {
	return []ColumnRef{
		{ColNaturalGasPrice, &r.NaturalGasPrice},
		{ColNaturalGasVol, &r.NaturalGasVol},
		{ColCrudeOilPrice, &r.CrudeOilPrice},
		{ColCrudeOilVol, &r.CrudeOilVol},
		{ColCopperPrice, &r.CopperPrice},
		{ColCopperVol, &r.CopperVol},
		{ColBitcoinPrice, &r.BitcoinPrice},
		{ColBitcoinVol, &r.BitcoinVol},
		{ColPlatinumPrice, &r.PlatinumPrice},
		{ColPlatinumVol, &r.PlatinumVol},
		{ColEthereumPrice, &r.EthereumPrice},
		{ColEthereumVol, &r.EthereumVol},
		{ColSP500Price, &r.SP500Price},
		{ColNasdaq100Price, &r.Nasdaq100Price},
		{ColNasdaq100Vol, &r.Nasdaq100Vol},
		{ColApplePrice, &r.ApplePrice},
		{ColAppleVol, &r.AppleVol},
		{ColTeslaPrice, &r.TeslaPrice},
		{ColTeslaVol, &r.TeslaVol},
		{ColMicrosoftPrice, &r.MicrosoftPrice},
		{ColMicrosoftVol, &r.MicrosoftVol},
		{ColSilverPrice, &r.SilverPrice},
		{ColSilverVol, &r.SilverVol},
		{ColGooglePrice, &r.GooglePrice},
		{ColGoogleVol, &r.GoogleVol},
		{ColNvidiaPrice, &r.NvidiaPrice},
		{ColNvidiaVol, &r.NvidiaVol},
		{ColBerkshirePrice, &r.BerkshirePrice},
		{ColBerkshireVol, &r.BerkshireVol},
		{ColNetflixPrice, &r.NetflixPrice},
		{ColNetflixVol, &r.NetflixVol},
		{ColAmazonPrice, &r.AmazonPrice},
		{ColAmazonVol, &r.AmazonVol},
		{ColMetaPrice, &r.MetaPrice},
		{ColMetaVol, &r.MetaVol},
		{ColGoldPrice, &r.GoldPrice},
		{ColGoldVol, &r.GoldVol},
	}
}

// NumericColumnNames lists the numeric column names in table order.
func NumericColumnNames() []string {
	var row DailyRow
	refs := row.NumericColumns()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name
	}
	return names
}

// SetColumn assigns a value to the named numeric column. It reports false
// when the row has no such column.
func (r *DailyRow) SetColumn(name string, value *float64) bool {
	for _, ref := range r.NumericColumns() {
		if ref.Name == name {
			*ref.Field = value
			return true
		}
	}
	return false
}

// Column returns the value of the named numeric column.
func (r *DailyRow) Column(name string) (*float64, bool) {
	for _, ref := range r.NumericColumns() {
		if ref.Name == name {
			return *ref.Field, true
		}
	}
	return nil, false
}

// RowFilter selects rows for listing. Date bounds are inclusive and compared
// on the calendar day.
type RowFilter struct {
	Limit   int        `json:"limit" validate:"gte=1,lte=1000"`
	Offset  int        `json:"offset" validate:"gte=0"`
	DateEq  *time.Time `json:"date_eq,omitempty"`
	DateGte *time.Time `json:"date_gte,omitempty"`
	DateLte *time.Time `json:"date_lte,omitempty"`
}

// Float returns a pointer to v. Handy for building rows in code.
func Float(v float64) *float64 {
	return &v
}

// RowPage is one page of a row listing. Total counts every row matching the
// filter, ignoring Limit and Offset.
type RowPage struct {
	Data   []DailyRow `json:"data"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}
