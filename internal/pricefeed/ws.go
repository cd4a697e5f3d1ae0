// Package pricefeed maintains a live spot-price cache from the exchange's
// miniTicker websocket stream.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Config configures websocket client behavior.
type Config struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultConfig returns the default websocket configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Ticker is one miniTicker payload: last close price per symbol.
type Ticker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// Client consumes the all-market miniTicker stream and caches the latest
// price per symbol. Prices are served from the cache; a dropped connection
// reconnects with backoff and the cache keeps serving the last seen values
// in the meantime.
type Client struct {
	endpoint string
	config   Config
	logger   zerolog.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	prices   map[string]priceEntry
	pricesMu sync.RWMutex

	done chan struct{}
	wg   sync.WaitGroup
}

type priceEntry struct {
	price     float64
	updatedAt time.Time
}

// New creates a client and connects to the endpoint.
func New(ctx context.Context, endpoint string, config *Config, logger zerolog.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}

	c := &Client{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		prices:   make(map[string]priceEntry),
		done:     make(chan struct{}),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	// Release the previous connection's descriptor before dialing a new one.
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// readLoop consumes ticker frames until Close, reconnecting with doubling
// backoff after read failures.
func (c *Client) readLoop() {
	defer c.wg.Done()

	delay := c.config.ReconnectDelay
	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()
		if conn == nil {
			// The previous reconnect attempt failed; try again.
			c.reconnect(&delay)
			continue
		}

		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn().Err(err).Msg("ticker stream read failed, reconnecting")
			c.reconnect(&delay)
			continue
		}
		delay = c.config.ReconnectDelay

		var tickers []Ticker
		if err := json.Unmarshal(message, &tickers); err != nil {
			c.logger.Warn().Err(err).Msg("unparseable ticker frame")
			continue
		}
		c.ingest(tickers)
	}
}

func (c *Client) reconnect(delay *time.Duration) {
	select {
	case <-c.done:
		return
	case <-time.After(*delay):
	}
	*delay *= 2
	if *delay > c.config.MaxReconnectDelay {
		*delay = c.config.MaxReconnectDelay
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := c.connect(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("reconnect failed")
	}
}

func (c *Client) ingest(tickers []Ticker) {
	now := time.Now()
	c.pricesMu.Lock()
	defer c.pricesMu.Unlock()
	for _, t := range tickers {
		var price float64
		if _, err := fmt.Sscanf(t.Close, "%g", &price); err != nil || price <= 0 {
			continue
		}
		c.prices[t.Symbol] = priceEntry{price: price, updatedAt: now}
	}
}

// Price returns the latest cached price for a symbol and its staleness.
// The second return is false when the symbol has never been seen.
func (c *Client) Price(symbol string) (float64, time.Time, bool) {
	c.pricesMu.RLock()
	defer c.pricesMu.RUnlock()
	entry, ok := c.prices[symbol]
	if !ok {
		return 0, time.Time{}, false
	}
	return entry.price, entry.updatedAt, true
}

// Symbols returns every symbol currently cached.
func (c *Client) Symbols() []string {
	c.pricesMu.RLock()
	defer c.pricesMu.RUnlock()
	out := make([]string, 0, len(c.prices))
	for s := range c.prices {
		out = append(out, s)
	}
	return out
}

// Close shuts the stream down and waits for the reader to exit.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}
