package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/chainledger/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func TestPriceAtStablecoinsAreAlwaysOne(t *testing.T) {
	// No server configured: the stablecoin shortcut must not touch the
	// network or the database at all.
	s := NewPriceService("http://127.0.0.1:0", time.Second)
	for _, symbol := range []string{"USD", "USDC", "USDT", "DAI"} {
		price, known := s.PriceAt(symbol, time.Now())
		if !known || !price.Equal(decimal.NewFromInt(1)) {
			t.Errorf("PriceAt(%s) = %s/%v, want 1/true", symbol, price, known)
		}
		price, known = s.CurrentPrice(symbol)
		if !known || !price.Equal(decimal.NewFromInt(1)) {
			t.Errorf("CurrentPrice(%s) = %s/%v, want 1/true", symbol, price, known)
		}
	}
}

func TestPriceAtEmptySymbol(t *testing.T) {
	s := NewPriceService("http://127.0.0.1:0", time.Second)
	if _, known := s.PriceAt("", time.Now()); known {
		t.Error("empty symbol should never resolve")
	}
	if _, known := s.CurrentPrice(""); known {
		t.Error("empty symbol should never resolve")
	}
}

func TestPriceAtFetchesAndMemoizes(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		ts := r.URL.Query().Get("toTs")
		fmt.Fprintf(w, `{"Response":"Success","Data":{"Data":[
			{"time":1,"close":1900.5},
			{"time":%s,"close":2000.25}
		]}}`, ts)
	}))
	defer server.Close()

	s := NewPriceService(server.URL, time.Second)
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	price, known := s.PriceAt("ETH", at)
	if !known {
		t.Fatal("price not resolved")
	}
	if want := decimal.RequireFromString("2000.25"); !price.Equal(want) {
		t.Errorf("price = %s, want %s (latest sample at or before toTs)", price, want)
	}

	// Same day bucket resolves from the memo.
	s.PriceAt("ETH", at.Add(2*time.Hour))
	if calls != 1 {
		t.Errorf("API called %d times, want 1", calls)
	}
}

func TestPriceAtMemoizesMisses(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"Response":"Error","Message":"market does not exist"}`)
	}))
	defer server.Close()

	s := NewPriceService(server.URL, time.Second)
	at := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	if _, known := s.PriceAt("NOFEED", at); known {
		t.Fatal("errored lookup reported as priced")
	}
	s.PriceAt("NOFEED", at)
	if calls != 1 {
		t.Errorf("API called %d times for a memoized miss, want 1", calls)
	}
}

func TestCurrentPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fsym"); got != "ETH" {
			t.Errorf("fsym = %q, want ETH", got)
		}
		fmt.Fprint(w, `{"USD":2345.67}`)
	}))
	defer server.Close()

	s := NewPriceService(server.URL, time.Second)
	price, known := s.CurrentPrice("ETH")
	if !known {
		t.Fatal("current price not resolved")
	}
	if want := decimal.RequireFromString("2345.67"); !price.Equal(want) {
		t.Errorf("price = %s, want %s", price, want)
	}
}
