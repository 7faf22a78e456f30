package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/vitos/crypto_signal_desk/internal/domain"
	"go.uber.org/zap"
)

const (
	BybitBaseURL = "https://api.bybit.com"
	BybitWSURL   = "wss://stream.bybit.com/v5/public/linear"

	recvWindow      = 5000
	wsPingInterval  = 20 * time.Second
	wsSubscribeSize = 10
)

// BybitAdapter reads public market data from the Bybit v5 API. Private
// endpoints are never called; keys only sign requests when configured.
type BybitAdapter struct {
	apiKey    string
	apiSecret string
	baseURL   string
	wsURL     string
	category  string
	client    *http.Client
	logger    *zap.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	wsConn    *websocket.Conn
	callbacks []func(symbol string, price float64)
}

func NewBybitAdapter(apiKey, apiSecret, baseURL, wsURL, category string, logger *zap.Logger) *BybitAdapter {
	if baseURL == "" {
		baseURL = BybitBaseURL
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	if category == "" {
		category = "linear"
	}
	return &BybitAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		wsURL:     wsURL,
		category:  category,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// --- REST API ---

func (b *BybitAdapter) sign(params string, timestamp int64) string {
	// timestamp + apiKey + recvWindow + params
	toSign := fmt.Sprintf("%d%s%d%s", timestamp, b.apiKey, recvWindow, params)
	h := hmac.New(sha256.New, []byte(b.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

func (b *BybitAdapter) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	encoded := query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path+"?"+encoded, nil)
	if err != nil {
		return nil, err
	}

	if b.apiKey != "" && b.apiSecret != "" {
		timestamp := time.Now().UnixMilli()
		req.Header.Set("X-BAPI-API-KEY", b.apiKey)
		req.Header.Set("X-BAPI-TIMESTAMP", strconv.FormatInt(timestamp, 10))
		req.Header.Set("X-BAPI-SIGN", b.sign(encoded, timestamp))
		req.Header.Set("X-BAPI-RECV-WINDOW", strconv.Itoa(recvWindow))
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %d %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// call performs a GET and decodes the result field into out.
func (b *BybitAdapter) call(ctx context.Context, path string, query url.Values, out any) error {
	body, err := b.get(ctx, path, query)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit api error %d: %s", env.RetCode, env.RetMsg)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", path, err)
	}
	return nil
}

func (b *BybitAdapter) GetInstruments(ctx context.Context, category string) ([]domain.Instrument, error) {
	if category == "" {
		category = b.category
	}

	var result struct {
		List []struct {
			Symbol     string `json:"symbol"`
			BaseCoin   string `json:"baseCoin"`
			QuoteCoin  string `json:"quoteCoin"`
			Status     string `json:"status"`
			LaunchTime string `json:"launchTime"`
		} `json:"list"`
	}
	query := url.Values{"category": {category}, "limit": {"1000"}}
	if err := b.call(ctx, "/v5/market/instruments-info", query, &result); err != nil {
		return nil, err
	}

	instruments := make([]domain.Instrument, 0, len(result.List))
	for _, item := range result.List {
		launchTime, _ := strconv.ParseInt(item.LaunchTime, 10, 64)
		instruments = append(instruments, domain.Instrument{
			Symbol:     item.Symbol,
			BaseCoin:   item.BaseCoin,
			QuoteCoin:  item.QuoteCoin,
			Status:     item.Status,
			LaunchTime: launchTime,
		})
	}
	return instruments, nil
}

// GetTickers returns the 24h ticker of every instrument in category.
func (b *BybitAdapter) GetTickers(ctx context.Context, category string) ([]domain.Ticker, error) {
	if category == "" {
		category = b.category
	}

	var result struct {
		List []struct {
			Symbol       string `json:"symbol"`
			LastPrice    string `json:"lastPrice"`
			PrevPrice1h  string `json:"prevPrice1h"`
			Price24hPcnt string `json:"price24hPcnt"`
			Volume24h    string `json:"volume24h"`
			Turnover24h  string `json:"turnover24h"`
			OpenInterest string `json:"openInterest"`
			FundingRate  string `json:"fundingRate"`
		} `json:"list"`
	}
	if err := b.call(ctx, "/v5/market/tickers", url.Values{"category": {category}}, &result); err != nil {
		return nil, err
	}

	tickers := make([]domain.Ticker, 0, len(result.List))
	for _, raw := range result.List {
		tickers = append(tickers, domain.Ticker{
			Symbol:       raw.Symbol,
			LastPrice:    parseFloat(raw.LastPrice),
			PrevPrice1h:  parseFloat(raw.PrevPrice1h),
			Price24hPcnt: parseFloat(raw.Price24hPcnt),
			Volume24h:    parseFloat(raw.Volume24h),
			Turnover24h:  parseFloat(raw.Turnover24h),
			OpenInterest: parseFloat(raw.OpenInterest),
			FundingRate:  parseFloat(raw.FundingRate),
		})
	}
	return tickers, nil
}

// GetCandles returns klines oldest first.
func (b *BybitAdapter) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	var result struct {
		List [][]string `json:"list"`
	}
	query := url.Values{
		"category": {b.category},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}
	if err := b.call(ctx, "/v5/market/kline", query, &result); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(result.List))
	for _, raw := range result.List {
		// [startTime, open, high, low, close, volume, turnover]
		if len(raw) < 6 {
			continue
		}
		ts, _ := strconv.ParseInt(raw[0], 10, 64)
		candles = append(candles, domain.Candle{
			Time:   ts / 1000,
			Open:   parseFloat(raw[1]),
			High:   parseFloat(raw[2]),
			Low:    parseFloat(raw[3]),
			Close:  parseFloat(raw[4]),
			Volume: parseFloat(raw[5]),
		})
	}

	// Bybit lists newest first
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}

func parseFloat(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// --- WebSocket ---

func (b *BybitAdapter) OnPriceUpdate(callback func(symbol string, price float64)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callbacks = append(b.callbacks, callback)
}

// StreamPrices keeps a ticker subscription for symbols open until ctx is
// done, reconnecting with exponential backoff after read failures.
func (b *BybitAdapter) StreamPrices(ctx context.Context, symbols []string) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = time.Minute

	for {
		received, err := b.streamOnce(ctx, symbols)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		b.logger.Warn("Price stream disconnected, reconnecting",
			zap.Error(err), zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// streamOnce runs one connection and reports whether any price arrived.
func (b *BybitAdapter) streamOnce(ctx context.Context, symbols []string) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.wsURL, nil)
	if err != nil {
		return false, err
	}
	b.mu.Lock()
	b.wsConn = conn
	b.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		b.mu.Lock()
		b.wsConn = nil
		b.mu.Unlock()
	}()

	if err := b.subscribe(conn, symbols); err != nil {
		return false, err
	}
	b.logger.Info("Price stream connected", zap.Int("symbols", len(symbols)))

	go b.keepAlive(ctx, conn, done)
	return b.readLoop(conn)
}

func (b *BybitAdapter) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			// unblocks the read loop
			conn.Close()
			return
		case <-ticker.C:
			if err := b.writeJSON(conn, map[string]any{"op": "ping"}); err != nil {
				b.logger.Debug("WS ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (b *BybitAdapter) writeJSON(conn *websocket.Conn, v any) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (b *BybitAdapter) subscribe(conn *websocket.Conn, symbols []string) error {
	for start := 0; start < len(symbols); start += wsSubscribeSize {
		end := min(start+wsSubscribeSize, len(symbols))
		args := make([]string, 0, end-start)
		for _, s := range symbols[start:end] {
			args = append(args, "tickers."+s)
		}
		if err := b.writeJSON(conn, map[string]any{"op": "subscribe", "args": args}); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}
	return nil
}

type tickerEvent struct {
	Topic string `json:"topic"`
	Data  struct {
		Symbol    string `json:"symbol"`
		LastPrice string `json:"lastPrice"`
	} `json:"data"`
}

func (b *BybitAdapter) readLoop(conn *websocket.Conn) (bool, error) {
	received := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}

		var event tickerEvent
		if err := json.Unmarshal(message, &event); err != nil {
			b.logger.Debug("WS unmarshal error", zap.Error(err))
			continue
		}
		if !strings.HasPrefix(event.Topic, "tickers.") {
			continue
		}
		// deltas omit unchanged fields
		price := parseFloat(event.Data.LastPrice)
		if price <= 0 {
			continue
		}
		symbol := event.Data.Symbol
		if symbol == "" {
			symbol = strings.TrimPrefix(event.Topic, "tickers.")
		}
		received = true

		b.mu.Lock()
		callbacks := make([]func(string, float64), len(b.callbacks))
		copy(callbacks, b.callbacks)
		b.mu.Unlock()

		for _, cb := range callbacks {
			cb(symbol, price)
		}
	}
}

// Connected reports whether a price stream connection is open.
func (b *BybitAdapter) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.wsConn != nil
}
