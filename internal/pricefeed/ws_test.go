package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func tickerServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		// Keep the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func waitForPrice(t *testing.T, c *Client, symbol string) float64 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if price, _, ok := c.Price(symbol); ok {
			return price
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no price for %s within deadline", symbol)
	return 0
}

func TestClient_CachesTickerPrices(t *testing.T) {
	server := tickerServer(t, []string{
		`[{"s":"BTCUSDT","c":"40000.50"},{"s":"ETHUSDT","c":"2000"}]`,
		`[{"s":"BTCUSDT","c":"40100.25"}]`,
	})
	defer server.Close()

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := New(context.Background(), endpoint, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	if got := waitForPrice(t, client, "ETHUSDT"); got != 2000 {
		t.Errorf("ETHUSDT = %v, want 2000", got)
	}

	// The second frame supersedes the first.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if price, _, ok := client.Price("BTCUSDT"); ok && price == 40100.25 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	price, _, _ := client.Price("BTCUSDT")
	t.Errorf("BTCUSDT = %v, want updated 40100.25", price)
}

func TestClient_IgnoresBadFrames(t *testing.T) {
	server := tickerServer(t, []string{
		`not json`,
		`[{"s":"BTCUSDT","c":"-5"}]`,
		`[{"s":"BTCUSDT","c":"40000"}]`,
	})
	defer server.Close()

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := New(context.Background(), endpoint, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	if got := waitForPrice(t, client, "BTCUSDT"); got != 40000 {
		t.Errorf("BTCUSDT = %v, want 40000 (bad frames ignored)", got)
	}
}

func TestClient_ReconnectClosesDroppedConn(t *testing.T) {
	// The server drops the first connection after one frame and serves the
	// second one normally.
	var mu sync.Mutex
	conns := 0
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()
		if n == 1 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"s":"BTCUSDT","c":"1"}]`))
			conn.Close()
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`[{"s":"BTCUSDT","c":"2"}]`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := New(context.Background(), endpoint, &cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer client.Close()

	client.connMu.Lock()
	firstConn := client.conn
	client.connMu.Unlock()

	// Wait for the price from the second connection.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if price, _, ok := client.Price("BTCUSDT"); ok && price == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if price, _, _ := client.Price("BTCUSDT"); price != 2 {
		t.Fatalf("no price from the reconnected stream, got %v", price)
	}

	// The dropped connection's descriptor was released: closing it again
	// must report it as already closed.
	if err := firstConn.NetConn().Close(); err == nil {
		t.Error("dropped connection left open after reconnect")
	}
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	server := tickerServer(t, nil)
	defer server.Close()

	endpoint := "ws" + strings.TrimPrefix(server.URL, "http")
	client, err := New(context.Background(), endpoint, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if _, _, ok := client.Price("BTCUSDT"); ok {
		t.Error("no price should exist")
	}
}

func TestClient_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, "ws://127.0.0.1:1/stream", nil, zerolog.Nop()); err == nil {
		t.Error("expected dial error")
	}
}
