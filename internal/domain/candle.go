package domain

// Candle is one OHLC sample of a market symbol at a fixed interval.
// Corresponds to the candles table in ClickHouse.
type Candle struct {
	Symbol          string  // order book symbol, e.g. "BTCUSDT"
	IntervalSeconds int     // sample interval: 3600 (hourly) or 86400 (daily)
	Timestamp       int64   // open time, Unix milliseconds
	Open            float64
	High            float64
	Low             float64
	Close           float64
	Volume          float64
}

// Supported candle intervals (in seconds).
const (
	CandleInterval1Hour = 3600
	CandleInterval1Day  = 86400
)
