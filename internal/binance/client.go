package binance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"CandleLedger/internal/model"
)

const userAgent = "CandleLedger/0.1"

// attemptsPerBase is the retry budget for transient failures on one base host.
const attemptsPerBase = 2

// Client fetches klines from the Binance REST API, trying each base host in
// order (US region first, global fallback second). Stateless across calls.
type Client struct {
	Bases  []string
	Client *http.Client
}

// NewClient creates a Client with optional proxy support. Bases must be
// ordered by preference; an empty list is replaced with the defaults.
func NewClient(bases []string, proxyURL string) *Client {
	if len(bases) == 0 {
		bases = []string{"https://api.binance.us", "https://api.binance.com"}
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Client{
		Bases: bases,
		Client: &http.Client{
			Timeout:   20 * time.Second,
			Transport: transport,
		},
	}
}

// statusError is a non-2xx response from one base host.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("klines: status %d, body: %s", e.Status, e.Body)
}

// blocked reports whether the status indicates a legal/geographic block,
// which makes further attempts against the same host pointless.
func (e *statusError) blocked() bool {
	return e.Status == http.StatusUnavailableForLegalReasons || e.Status == http.StatusForbidden
}

// transition is the outcome of classifying one failed attempt.
type transition int

const (
	retrySameBase transition = iota // transient: spend another attempt on this host
	advanceBase                     // give this host up, move to the next one
)

// classify maps one failure to exactly one transition. Network-level
// timeouts and connection failures are worth retrying on the same host;
// every HTTP error status and anything unexpected (bad body, decode
// failure) advances to the next host immediately.
func classify(err error) transition {
	var se *statusError
	if errors.As(err, &se) {
		return advanceBase
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return retrySameBase
	}
	return advanceBase
}

// FetchRecent returns the most recent candles for symbol, oldest first. If
// every base host and attempt fails, the last observed error is surfaced:
// callers of the windowed variant have no pagination fallback.
func (c *Client) FetchRecent(symbol, interval string, limit int) ([]model.Kline, error) {
	return c.fetch(symbol, interval, limit, 0)
}

// FetchFrom returns candles with open-time >= startMS, oldest first. On
// exhaustion of all hosts it returns an empty page instead of an error:
// paginating callers treat "no data" as end-of-stream.
func (c *Client) FetchFrom(symbol, interval string, startMS int64, limit int) ([]model.Kline, error) {
	kl, err := c.fetch(symbol, interval, limit, startMS)
	if err != nil {
		log.Printf("[WARN] klines fetch %s from %d gave up: %v", symbol, startMS, err)
		return nil, nil
	}
	return kl, nil
}

func (c *Client) fetch(symbol, interval string, limit int, startMS int64) ([]model.Kline, error) {
	var lastErr error
	for _, base := range c.Bases {
		for attempt := 0; attempt < attemptsPerBase; attempt++ {
			kl, err := c.doRequest(base, symbol, interval, limit, startMS)
			if err == nil {
				return kl, nil
			}
			lastErr = err
			if classify(err) == advanceBase {
				break
			}
			log.Printf("[WARN] klines %s via %s attempt %d/%d: %v", symbol, base, attempt+1, attemptsPerBase, err)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("klines: no base hosts configured")
	}
	return nil, fmt.Errorf("all klines hosts exhausted for %s: %w", symbol, lastErr)
}

func (c *Client) doRequest(base, symbol, interval string, limit int, startMS int64) ([]model.Kline, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base %q: %w", base, err)
	}
	u.Path = "/api/v3/klines"
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(limit))
	if startMS > 0 {
		q.Set("startTime", strconv.FormatInt(startMS, 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("klines read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		se := &statusError{Status: resp.StatusCode, Body: string(body)}
		if se.blocked() {
			log.Printf("[WARN] klines host %s blocked (status %d), advancing", base, se.Status)
		}
		return nil, se
	}
	return parseKlines(body)
}

// parseKlines decodes the raw kline array-of-arrays. Layout per row:
// [openTime, open, high, low, close, volume, closeTime, ...]; fields past
// index 5 are ignored. Prices arrive as JSON strings.
func parseKlines(body []byte) ([]model.Kline, error) {
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("klines decode: %w", err)
	}
	out := make([]model.Kline, 0, len(raw))
	for _, row := range raw {
		if len(row) < 6 {
			continue
		}
		out = append(out, model.Kline{
			OpenTime: toInt64(row[0]),
			Open:     toFloat(row[1]),
			High:     toFloat(row[2]),
			Low:      toFloat(row[3]),
			Close:    toFloat(row[4]),
			Volume:   toFloat(row[5]),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime < out[j].OpenTime })
	return out, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	case float64:
		return n
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	case float64:
		return int64(n)
	default:
		return 0
	}
}
