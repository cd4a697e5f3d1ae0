package action

import (
	"errors"
	"math"
	"testing"

	"exchange-ledger/internal/domain"
)

func newTestBuilder() *Builder {
	return NewBuilder("e0001", BinanceKeyMaps(), "")
}

func TestBuilder_TradeBuy(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Trade(Record{
		"symbol":          "BTCUSDT",
		"id":              28457,
		"price":           "40000.0",
		"qty":             "0.5",
		"commission":      "0.001",
		"commissionAsset": "BNB",
		"time":            1700000000000,
		"isBuyer":         true,
	}, "BTC")
	if err != nil {
		t.Fatalf("Trade failed: %v", err)
	}

	if entry.Asset != "BTC" {
		t.Errorf("expected asset BTC, got %s", entry.Asset)
	}
	if entry.Amount != 0.5 {
		t.Errorf("expected buy amount +0.5, got %v", entry.Amount)
	}
	if entry.CounterAsset != "USDT" {
		t.Errorf("expected counter USDT, got %s", entry.CounterAsset)
	}
	if entry.Side != domain.SideBuy {
		t.Errorf("expected side buy, got %s", entry.Side)
	}
	if entry.SourceID != "28457" {
		t.Errorf("expected numeric id stringified, got %q", entry.SourceID)
	}
	if entry.FeeAsset != "BNB" || entry.FeeAmount != 0.001 {
		t.Errorf("fee provenance wrong: %s %v", entry.FeeAsset, entry.FeeAmount)
	}
}

func TestBuilder_TradeSellIsNegative(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Trade(Record{
		"symbol":          "ETHUSDT",
		"id":              "99",
		"price":           "2000",
		"qty":             "2",
		"commission":      "0.01",
		"commissionAsset": "USDT",
		"time":            1700000000000,
		"isBuyer":         false,
	}, "ETH")
	if err != nil {
		t.Fatalf("Trade failed: %v", err)
	}
	if entry.Amount != -2 {
		t.Errorf("expected sell amount -2, got %v", entry.Amount)
	}
	if entry.Side != domain.SideSell {
		t.Errorf("expected side sell, got %s", entry.Side)
	}
}

func TestBuilder_TradeSymbolMismatch(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Trade(Record{
		"symbol":          "BTCUSDT",
		"id":              "1",
		"price":           "40000",
		"qty":             "1",
		"commission":      "0",
		"commissionAsset": "BNB",
		"time":            1700000000000,
		"isBuyer":         true,
	}, "ETH")
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for symbol/asset mismatch, got %v", err)
	}
}

func TestBuilder_DepositPositive(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Deposit(Record{
		"coin":       "SOL",
		"amount":     "10",
		"insertTime": 1700000000000,
		"network":    "SOL",
		"address":    "abc123",
		"status":     1,
		"txId":       "dep-1",
	})
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if entry.Amount != 10 {
		t.Errorf("expected deposit +10, got %v", entry.Amount)
	}
	if entry.Network != "SOL" || entry.Address != "abc123" {
		t.Errorf("transfer provenance wrong: %s %s", entry.Network, entry.Address)
	}
}

func TestBuilder_WithdrawalForcedNegative(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Withdrawal(Record{
		"coin":           "BTC",
		"amount":         "0.2",
		"applyTime":      "2023-11-14 22:13:20",
		"network":        "BTC",
		"address":        "bc1xyz",
		"status":         6,
		"transactionFee": "0.0005",
		"id":             "wd-1",
	})
	if err != nil {
		t.Fatalf("Withdrawal failed: %v", err)
	}
	if entry.Amount != -0.2 {
		t.Errorf("expected withdrawal -0.2, got %v", entry.Amount)
	}
	if entry.FeeAsset != "BTC" || entry.FeeAmount != 0.0005 {
		t.Errorf("expected fee in withdrawn asset, got %s %v", entry.FeeAsset, entry.FeeAmount)
	}
	if entry.Timestamp == 0 {
		t.Error("string-form applyTime not parsed")
	}
}

func TestBuilder_DustSweepForcedNegative(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.DustSweep(Record{
		"fromAsset":           "XRP",
		"amount":              "3.5",
		"operateTime":         1700000000000,
		"serviceChargeAmount": "0.0002",
		"transferedAmount":    "0.01",
		"transId":             4359321,
	})
	if err != nil {
		t.Fatalf("DustSweep failed: %v", err)
	}
	if entry.Amount != -3.5 {
		t.Errorf("expected swept asset -3.5, got %v", entry.Amount)
	}
	if entry.TransferedAsset != DefaultSettlementAsset || entry.TransferedAmount != 0.01 {
		t.Errorf("settlement provenance wrong: %s %v", entry.TransferedAsset, entry.TransferedAmount)
	}
	if entry.FeeAsset != DefaultSettlementAsset {
		t.Errorf("expected dust fee in settlement asset, got %s", entry.FeeAsset)
	}
}

func TestBuilder_FiatSignByTransactionType(t *testing.T) {
	b := newTestBuilder()

	base := Record{
		"fiatCurrency":    "EUR",
		"indicatedAmount": "500",
		"createTime":      1700000000000,
		"totalFee":        "1.5",
		"orderNo":         "f-1",
		"status":          "Successful",
	}

	base["transactionType"] = 0
	dep, err := b.Fiat(base)
	if err != nil {
		t.Fatalf("Fiat deposit failed: %v", err)
	}
	if dep.Amount != 500 {
		t.Errorf("expected fiat deposit +500, got %v", dep.Amount)
	}

	base["transactionType"] = 1
	wd, err := b.Fiat(base)
	if err != nil {
		t.Fatalf("Fiat withdrawal failed: %v", err)
	}
	if wd.Amount != -500 {
		t.Errorf("expected fiat withdrawal -500, got %v", wd.Amount)
	}

	base["transactionType"] = 7
	if _, err := b.Fiat(base); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for unknown transaction type, got %v", err)
	}
}

func TestBuilder_DividendPositive(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Dividend(Record{
		"asset":   "ADA",
		"amount":  "1.25",
		"divTime": 1700000000000,
		"tranId":  555,
	})
	if err != nil {
		t.Fatalf("Dividend failed: %v", err)
	}
	if entry.Amount != 1.25 {
		t.Errorf("expected dividend +1.25, got %v", entry.Amount)
	}
}

func TestBuilder_Conversion(t *testing.T) {
	b := newTestBuilder()

	entry, err := b.Conversion(Record{
		"toAsset":    "USDT",
		"toAmount":   "1000",
		"fromAsset":  "BTC",
		"fromAmount": "0.025",
		"ratio":      "0.000025",
		"createTime": 1700000000000,
		"orderId":    "c-1",
	})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}
	if entry.Asset != "USDT" || entry.Amount != 1000 {
		t.Errorf("expected +1000 USDT received, got %v %s", entry.Amount, entry.Asset)
	}
	if entry.CounterAsset != "BTC" {
		t.Errorf("expected counter BTC, got %s", entry.CounterAsset)
	}
	if math.Abs(entry.Price-0.000025) > 1e-18 {
		t.Errorf("expected price derived from the sold amount, got %v", entry.Price)
	}
}

func TestBuilder_ConversionExactSoldAmount(t *testing.T) {
	// The provider rounds the reported ratio; the sold amount is exact and
	// must flow through to the synthesized counter-asset debit unchanged.
	b := newTestBuilder()

	entry, err := b.Conversion(Record{
		"toAsset":    "BTC",
		"toAmount":   "0.5",
		"fromAsset":  "USDT",
		"fromAmount": "123.45",
		"ratio":      "246.90000001",
		"createTime": 1700000000000,
		"orderId":    "c-2",
	})
	if err != nil {
		t.Fatalf("Conversion failed: %v", err)
	}

	legs := Expand([]*domain.Entry{entry})
	if len(legs) != 2 {
		t.Fatalf("expected base + opposite leg, got %d", len(legs))
	}
	opposite := legs[1]
	if opposite.Asset != "USDT" || opposite.Amount != -123.45 {
		t.Errorf("opposite leg = %v %s, want exactly -123.45 USDT", opposite.Amount, opposite.Asset)
	}
}

func TestBuilder_MissingFieldIsMalformed(t *testing.T) {
	b := newTestBuilder()

	_, err := b.Deposit(Record{
		"coin":   "SOL",
		"amount": "10",
		// insertTime missing
		"txId": "dep-1",
	})
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("expected ErrMalformedRecord for missing timestamp, got %v", err)
	}
}

func TestCanonicalAsset(t *testing.T) {
	cases := map[string]string{
		"BUSD": "USDT",
		"USDC": "USDT",
		"DAI":  "USDT",
		"USDT": "USDT",
		"BTC":  "BTC",
	}
	for in, want := range cases {
		if got := CanonicalAsset(in); got != want {
			t.Errorf("CanonicalAsset(%s) = %s, want %s", in, got, want)
		}
	}
}
