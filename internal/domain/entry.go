package domain

import "fmt"

// Category identifies the kind of account activity a ledger entry derives from.
type Category string

const (
	CategoryTrade      Category = "trade"
	CategoryDeposit    Category = "deposit"
	CategoryWithdrawal Category = "withdrawal"
	CategoryDustSweep  Category = "dust_sweep"
	CategoryFiat       Category = "fiat_movement"
	CategoryDividend   Category = "dividend"
	CategoryConversion Category = "conversion"
	CategoryFee        Category = "fee"

	// CategoryMovements identifies the compiled canonical ledger. It is a
	// checkpoint key only; no entry carries it.
	CategoryMovements Category = "movements"
)

// ProviderCategories lists the categories fetched from a data source.
// CategoryFee is synthesis-only and never fetched.
func ProviderCategories() []Category {
	return []Category{
		CategoryTrade,
		CategoryDeposit,
		CategoryWithdrawal,
		CategoryDustSweep,
		CategoryFiat,
		CategoryDividend,
		CategoryConversion,
	}
}

// Leg distinguishes the multiple ledger entries derived from one source record.
type Leg string

const (
	LegBase     Leg = "base"     // the movement reported by the provider
	LegFee      Leg = "fee"      // synthesized fee debit
	LegOpposite Leg = "opposite" // synthesized counter-asset leg of a trade/conversion
	LegTransfer Leg = "transfer" // synthesized dust-sweep settlement credit
)

// Entry is one canonical, signed, timestamped movement of a single asset
// (full projection). Entries are immutable once constructed: amount sign is
// fixed at construction time and never re-interpreted downstream.
type Entry struct {
	Asset       string
	Amount      float64 // positive = asset received, negative = asset given up
	Timestamp   int64   // Unix timestamp in milliseconds
	Category    Category
	Leg         Leg
	Source      string // data source code, e.g. "e0001"
	SourceID    string // provider-issued immutable identifier
	Description string

	// Trade / conversion provenance
	Symbol       string  // order book symbol, e.g. "BTCUSDT" (trades only)
	Price        float64 // execution price in the counter asset
	CounterAsset string  // quote currency of the trade or conversion base
	CounterPrice float64 // counter asset price in the reference currency
	Side         string  // "buy" | "sell" (trades only)

	// Fee provenance
	FeeAsset      string
	FeeAmount     float64
	FeeAssetPrice float64 // fee asset price in the reference currency

	// Transfer provenance (deposits/withdrawals)
	Network string
	Address string
	Status  string

	// Dust sweep settlement
	TransferedAmount float64
	TransferedAsset  string
}

// Trade side constants.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Movement is the base projection of an Entry: the fields persisted in the
// canonical ledger. Provenance stays on the per-category full entry.
type Movement struct {
	Asset       string
	Amount      float64
	Timestamp   int64 // Unix timestamp in milliseconds
	Category    Category
	Leg         Leg
	Source      string
	SourceID    string
	Description string
}

// Movement returns the entry's base projection.
func (e *Entry) Movement() *Movement {
	return &Movement{
		Asset:       e.Asset,
		Amount:      e.Amount,
		Timestamp:   e.Timestamp,
		Category:    e.Category,
		Leg:         e.Leg,
		Source:      e.Source,
		SourceID:    e.SourceID,
		Description: e.Description,
	}
}

// Key returns the entry's dedup key. Synthesized legs share the parent's
// SourceID, so the leg tag and asset are part of the key.
func (e *Entry) Key() string {
	return entryKey(e.Source, e.Category, e.SourceID, e.Leg, e.Asset)
}

// Key returns the movement's dedup key, identical to the originating entry's.
func (m *Movement) Key() string {
	return entryKey(m.Source, m.Category, m.SourceID, m.Leg, m.Asset)
}

func entryKey(source string, category Category, sourceID string, leg Leg, asset string) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", source, category, sourceID, leg, asset)
}
