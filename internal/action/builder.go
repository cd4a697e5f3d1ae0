package action

import (
	"fmt"
	"math"
	"strings"

	"exchange-ledger/internal/domain"
)

// DefaultSettlementAsset is the exchange utility token dust sweeps settle in.
const DefaultSettlementAsset = "BNB"

// Builder converts raw provider records into canonical ledger entries.
// Amount signs are fixed here and never re-interpreted downstream: sells,
// withdrawals and swept dust are negative; deposits, dividends and buys are
// positive.
type Builder struct {
	source          string
	settlementAsset string
	keyMaps         map[domain.Category]KeyMap
}

// NewBuilder creates a builder for one data source. Pass an empty
// settlementAsset to use DefaultSettlementAsset.
func NewBuilder(source string, keyMaps map[domain.Category]KeyMap, settlementAsset string) *Builder {
	if settlementAsset == "" {
		settlementAsset = DefaultSettlementAsset
	}
	return &Builder{
		source:          source,
		settlementAsset: settlementAsset,
		keyMaps:         keyMaps,
	}
}

// Build converts one raw record of the given category into a ledger entry.
// Trades need the traded asset and must go through Trade directly.
func (b *Builder) Build(category domain.Category, rec Record) (*domain.Entry, error) {
	switch category {
	case domain.CategoryDeposit:
		return b.Deposit(rec)
	case domain.CategoryWithdrawal:
		return b.Withdrawal(rec)
	case domain.CategoryDustSweep:
		return b.DustSweep(rec)
	case domain.CategoryFiat:
		return b.Fiat(rec)
	case domain.CategoryDividend:
		return b.Dividend(rec)
	case domain.CategoryConversion:
		return b.Conversion(rec)
	default:
		return nil, fmt.Errorf("%w: no builder for category %q", ErrMalformedRecord, category)
	}
}

func (b *Builder) rekey(category domain.Category, rec Record) Record {
	km, ok := b.keyMaps[category]
	if !ok {
		return rec
	}
	return Rekey(rec, km)
}

// Trade builds the base entry of a trade. The traded asset is passed in
// because trade records carry only the combined symbol: fills are fetched per
// asset, so the caller always knows it.
func (b *Builder) Trade(rec Record, asset string) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryTrade, rec)

	symbol, err := r.Str(fieldSymbol)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(symbol, asset) || len(symbol) <= len(asset) {
		return nil, fmt.Errorf("%w: symbol %q does not start with asset %q", ErrMalformedRecord, symbol, asset)
	}
	counter := strings.TrimPrefix(symbol, asset)

	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	price, err := r.Num(fieldPrice)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}
	isBuyer, err := r.Bool(fieldIsBuyer)
	if err != nil {
		return nil, err
	}
	fee, err := r.Num(fieldFee)
	if err != nil {
		return nil, err
	}
	feeAsset, err := r.Str(fieldFeeAsset)
	if err != nil {
		return nil, err
	}

	side := SideFor(isBuyer)
	amount = math.Abs(amount)
	if side == domain.SideSell {
		amount = -amount
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      amount,
		Timestamp:   ts,
		Category:    domain.CategoryTrade,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "trading activity",

		Symbol:       symbol,
		Price:        price,
		CounterAsset: counter,
		Side:         side,
		FeeAsset:     feeAsset,
		FeeAmount:    fee,
	}, nil
}

// SideFor maps the provider's buyer flag to a trade side.
func SideFor(isBuyer bool) string {
	if isBuyer {
		return domain.SideBuy
	}
	return domain.SideSell
}

// Deposit builds the entry for an on-chain deposit. Amount is always a credit.
func (b *Builder) Deposit(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryDeposit, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      math.Abs(amount),
		Timestamp:   ts,
		Category:    domain.CategoryDeposit,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "deposit activity",

		Network: r.OptStr(fieldNetwork, ""),
		Address: r.OptStr(fieldAddress, ""),
		Status:  r.OptStr(fieldStatus, ""),
	}, nil
}

// Withdrawal builds the entry for an on-chain withdrawal. Amount is always a
// debit; the network fee is carried as provenance and synthesized into its
// own leg on expansion, never netted into the base amount.
func (b *Builder) Withdrawal(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryWithdrawal, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}
	fee, err := r.Num(fieldFee)
	if err != nil {
		return nil, err
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      -math.Abs(amount),
		Timestamp:   ts,
		Category:    domain.CategoryWithdrawal,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "withdrawal activity",

		FeeAsset:  asset,
		FeeAmount: fee,
		Network:   r.OptStr(fieldNetwork, ""),
		Address:   r.OptStr(fieldAddress, ""),
		Status:    r.OptStr(fieldStatus, ""),
	}, nil
}

// DustSweep builds the entry for a small-balance conversion into the
// settlement asset. The swept asset leaves the account, so the amount is
// always a debit; the settlement credit is synthesized on expansion.
func (b *Builder) DustSweep(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryDustSweep, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}
	fee, err := r.Num(fieldFee)
	if err != nil {
		return nil, err
	}
	transfered, err := r.Num(fieldTransferedAmount)
	if err != nil {
		return nil, err
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      -math.Abs(amount),
		Timestamp:   ts,
		Category:    domain.CategoryDustSweep,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "dust sweep activity",

		FeeAsset:         b.settlementAsset,
		FeeAmount:        fee,
		TransferedAmount: transfered,
		TransferedAsset:  b.settlementAsset,
	}, nil
}

// Fiat transaction types as reported by the provider.
const (
	fiatTypeDeposit    = 0
	fiatTypeWithdrawal = 1
)

// Fiat builds the entry for a fiat deposit or withdrawal. The sign follows
// the record's transaction type, not the reported amount's sign.
func (b *Builder) Fiat(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryFiat, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}
	txType, err := r.Num(fieldTransactionType)
	if err != nil {
		return nil, err
	}

	amount = math.Abs(amount)
	description := "fiat deposit activity"
	switch int(txType) {
	case fiatTypeDeposit:
	case fiatTypeWithdrawal:
		amount = -amount
		description = "fiat withdrawal activity"
	default:
		return nil, fmt.Errorf("%w: unknown fiat transaction type %d", ErrMalformedRecord, int(txType))
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      amount,
		Timestamp:   ts,
		Category:    domain.CategoryFiat,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: description,

		FeeAsset:  asset,
		FeeAmount: r.OptNum(fieldFee, 0),
		Status:    r.OptStr(fieldStatus, ""),
	}, nil
}

// Dividend builds the entry for a staking/earn distribution. Always a credit.
func (b *Builder) Dividend(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryDividend, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      math.Abs(amount),
		Timestamp:   ts,
		Category:    domain.CategoryDividend,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "dividend payment",
	}, nil
}

// Conversion builds the entry for an asset-to-asset conversion. The base
// entry credits the received asset; the debit of the sold asset is
// synthesized on expansion as -price*amount of the counter asset. When the
// record carries the exact sold amount, the price is derived from it instead
// of the reported ratio, which the provider rounds.
func (b *Builder) Conversion(rec Record) (*domain.Entry, error) {
	r := b.rekey(domain.CategoryConversion, rec)

	asset, err := r.Str(fieldAsset)
	if err != nil {
		return nil, err
	}
	amount, err := r.Num(fieldAmount)
	if err != nil {
		return nil, err
	}
	amount = math.Abs(amount)
	counter, err := r.Str(fieldCounterAsset)
	if err != nil {
		return nil, err
	}
	price, err := r.Num(fieldPrice)
	if err != nil {
		return nil, err
	}
	if sold := math.Abs(r.OptNum(fieldAmountSold, 0)); sold != 0 && amount != 0 {
		price = sold / amount
	}
	ts, err := r.TimeMs(fieldTime)
	if err != nil {
		return nil, err
	}
	id, err := r.Str(fieldID)
	if err != nil {
		return nil, err
	}

	return &domain.Entry{
		Asset:       asset,
		Amount:      amount,
		Timestamp:   ts,
		Category:    domain.CategoryConversion,
		Leg:         domain.LegBase,
		Source:      b.source,
		SourceID:    id,
		Description: "conversion activity",

		Price:        price,
		CounterAsset: counter,
	}, nil
}
