// src/services/price_service.go
package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/database"
	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/utils"
	"golang.org/x/net/publicsuffix"
)

// stablecoins resolve to exactly 1 without consulting any provider.
var stablecoins = map[string]bool{
	"USD":  true,
	"USDC": true,
	"USDT": true,
	"DAI":  true,
}

type priceEntry struct {
	price decimal.Decimal
	known bool
}

// PriceService resolves USD unit prices with a deterministic fallback
// ordering: stablecoin shortcut, then per-(symbol, day) memo, then the
// sqlite price history (latest sample at or before the requested day), then
// the external daily-close API, whose answers are written back to sqlite.
// Misses are memoized too, so a symbol with no feed is asked about once per
// day-bucket per run; the swap-implied fallback lives in the movement
// generator, closer to the trade legs it needs.
type PriceService struct {
	httpClient http.Client
	baseURL    string
	memo       *cache.Cache
}

func NewPriceService(baseURL string, timeout time.Duration) *PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &PriceService{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		baseURL: baseURL,
		memo:    cache.New(cache.NoExpiration, 30*time.Minute),
	}
}

// PriceAt returns the USD unit price of a commodity at a point in time.
func (s *PriceService) PriceAt(symbol string, t time.Time) (decimal.Decimal, bool) {
	if symbol == "" {
		return decimal.Zero, false
	}
	if stablecoins[symbol] {
		return decimal.NewFromInt(1), true
	}

	day := utils.DayKey(t)
	memoKey := symbol + "|" + day
	if cached, found := s.memo.Get(memoKey); found {
		entry := cached.(priceEntry)
		return entry.price, entry.known
	}

	entry := s.resolveHistorical(symbol, day, t)
	s.memo.Set(memoKey, entry, cache.NoExpiration)
	return entry.price, entry.known
}

// CurrentPrice returns the USD unit price right now, memoized for a few
// minutes so one report run sees stable prices.
func (s *PriceService) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	if symbol == "" {
		return decimal.Zero, false
	}
	if stablecoins[symbol] {
		return decimal.NewFromInt(1), true
	}

	memoKey := symbol + "|current"
	if cached, found := s.memo.Get(memoKey); found {
		entry := cached.(priceEntry)
		return entry.price, entry.known
	}

	entry := priceEntry{}
	if price, err := s.fetchCurrentPrice(symbol); err != nil {
		logger.L.Warn("Current price unavailable", "symbol", symbol, "error", err)
	} else {
		entry = priceEntry{price: price, known: true}
	}
	s.memo.Set(memoKey, entry, 5*time.Minute)
	return entry.price, entry.known
}

func (s *PriceService) resolveHistorical(symbol, day string, t time.Time) priceEntry {
	if price, ok := s.lookupStored(symbol, day); ok {
		return priceEntry{price: price, known: true}
	}

	price, err := s.fetchHistoricalPrice(symbol, t)
	if err != nil {
		logger.L.Warn("Historical price unavailable", "symbol", symbol, "day", day, "error", err)
		return priceEntry{}
	}
	s.store(symbol, day, price)
	return priceEntry{price: price, known: true}
}

// lookupStored returns the latest stored sample at or before the day.
func (s *PriceService) lookupStored(symbol, day string) (decimal.Decimal, bool) {
	if database.DB == nil {
		return decimal.Zero, false
	}
	var stored string
	err := database.DB.QueryRow(
		`SELECT price FROM price_history WHERE symbol = ? AND day <= ? ORDER BY day DESC LIMIT 1`,
		symbol, day,
	).Scan(&stored)
	if err != nil {
		if err != sql.ErrNoRows {
			logger.L.Error("Error querying price history", "symbol", symbol, "day", day, "error", err)
		}
		return decimal.Zero, false
	}
	price, err := decimal.NewFromString(stored)
	if err != nil {
		logger.L.Error("Invalid stored price", "symbol", symbol, "day", day, "value", stored, "error", err)
		return decimal.Zero, false
	}
	return price, true
}

func (s *PriceService) store(symbol, day string, price decimal.Decimal) {
	if database.DB == nil {
		return
	}
	_, err := database.DB.Exec(
		`INSERT OR IGNORE INTO price_history (symbol, day, price, source) VALUES (?, ?, ?, 'api')`,
		symbol, day, price.String(),
	)
	if err != nil {
		logger.L.Error("Error storing price history", "symbol", symbol, "day", day, "error", err)
	}
}

type histoDayResponse struct {
	Response string `json:"Response"`
	Message  string `json:"Message"`
	Data     struct {
		Data []struct {
			Time  int64   `json:"time"`
			Close float64 `json:"close"`
		} `json:"Data"`
	} `json:"Data"`
}

func (s *PriceService) fetchHistoricalPrice(symbol string, t time.Time) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("fsym", symbol)
	params.Set("tsym", "USD")
	params.Set("toTs", fmt.Sprintf("%d", t.Unix()))
	params.Set("limit", "1")

	endpoint := s.baseURL + "/data/v2/histoday?" + params.Encode()
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "chainledger/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call price history API for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("price history API returned status %d for %s", resp.StatusCode, symbol)
	}

	var data histoDayResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode price history response for %s: %w", symbol, err)
	}
	if data.Response == "Error" {
		return decimal.Zero, fmt.Errorf("price history API error for %s: %s", symbol, data.Message)
	}

	// The last bucket at or before toTs is the one we asked for.
	var latest float64
	found := false
	for _, sample := range data.Data.Data {
		if sample.Time <= t.Unix() && sample.Close > 0 {
			latest = sample.Close
			found = true
		}
	}
	if !found {
		return decimal.Zero, fmt.Errorf("no price samples for %s at %s", symbol, utils.DayKey(t))
	}
	return decimal.NewFromFloat(latest), nil
}

func (s *PriceService) fetchCurrentPrice(symbol string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("fsym", symbol)
	params.Set("tsyms", "USD")

	endpoint := s.baseURL + "/data/price?" + params.Encode()
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("User-Agent", "chainledger/1.0")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call current price API for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("current price API returned status %d for %s", resp.StatusCode, symbol)
	}

	var data map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode current price response for %s: %w", symbol, err)
	}
	price, ok := data["USD"]
	if !ok || price <= 0 {
		return decimal.Zero, fmt.Errorf("no USD price for %s", symbol)
	}
	return decimal.NewFromFloat(price), nil
}
