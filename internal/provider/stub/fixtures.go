package stub

import (
	"encoding/json"
	"fmt"
	"os"

	"exchange-ledger/internal/action"
	"exchange-ledger/internal/domain"
)

// Fixtures is a JSON-loadable account snapshot: raw provider records per
// category, current balances, delisted symbols and candle history. Records
// keep the provider's field names; the re-key maps translate them exactly as
// they would live API payloads.
type Fixtures struct {
	Records  map[domain.Category][]action.Record `json:"records"`
	Holdings map[string]float64                  `json:"holdings"`
	Delisted []string                            `json:"delisted"`
	Candles  []*domain.Candle                    `json:"candles"`
}

// LoadFixtures reads a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var f Fixtures
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	return &f, nil
}

// Provider builds a stub provider serving the fixture records.
func (f *Fixtures) Provider(code string) *Provider {
	p := New(code, f.Records)
	p.SetHoldings(f.Holdings)
	for _, symbol := range f.Delisted {
		p.Delist(symbol)
	}
	return p
}

// CandleSource builds a stub candle source serving the fixture candles.
func (f *Fixtures) CandleSource() *CandleSource {
	return NewCandleSource(f.Candles)
}
