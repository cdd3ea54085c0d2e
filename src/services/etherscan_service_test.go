package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/username/chainledger/src/models"
)

func newTestClient(baseURL string) *EtherscanClient {
	return NewEtherscanClient("KEY", baseURL, 1000, 3, time.Millisecond, time.Second)
}

func TestFetchTransfersBuildsQuery(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"module":   r.URL.Query().Get("module"),
			"action":   r.URL.Query().Get("action"),
			"address":  r.URL.Query().Get("address"),
			"endblock": r.URL.Query().Get("endblock"),
			"sort":     r.URL.Query().Get("sort"),
			"apikey":   r.URL.Query().Get("apikey"),
		}
		fmt.Fprint(w, `{"status":"1","message":"OK","result":[
			{"blockNumber":"1","timeStamp":"1700000000","hash":"0xAA","from":"0xF","to":"0xT","value":"5","isError":"0"}
		]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	transfers, err := c.FetchTransfers(context.Background(), "0xwallet", models.KindNative, "19000000")
	if err != nil {
		t.Fatalf("FetchTransfers failed: %v", err)
	}
	if len(transfers) != 1 || transfers[0].Hash != "0xAA" {
		t.Fatalf("transfers = %+v, want one row 0xAA", transfers)
	}
	want := map[string]string{
		"module": "account", "action": "txlist", "address": "0xwallet",
		"endblock": "19000000", "sort": "asc", "apikey": "KEY",
	}
	for k, v := range want {
		if gotQuery[k] != v {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], v)
		}
	}
}

func TestFetchTransfersRetriesOnRateLimit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			fmt.Fprint(w, `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`)
			return
		}
		fmt.Fprint(w, `{"status":"0","message":"No transactions found","result":[]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	transfers, err := c.FetchTransfers(context.Background(), "0xwallet", models.KindERC20, "")
	if err != nil {
		t.Fatalf("FetchTransfers failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("server called %d times, want 3", calls)
	}
	if len(transfers) != 0 {
		t.Errorf("transfers = %+v, want empty", transfers)
	}
}

func TestFetchTransfersGivesUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.FetchTransfers(context.Background(), "0xwallet", models.KindNative, ""); err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
}

func TestFetchReceiptNormalizesHex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("action"); got != "eth_getTransactionReceipt" {
			t.Errorf("action = %q", got)
		}
		fmt.Fprint(w, `{"result":{"gasUsed":"0x5208","effectiveGasPrice":"0x3b9aca00"}}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	receipt, err := c.FetchReceipt(context.Background(), "0xhash")
	if err != nil {
		t.Fatalf("FetchReceipt failed: %v", err)
	}
	if receipt.GasUsed != "21000" || receipt.EffectiveGasPrice != "1000000000" {
		t.Errorf("receipt = %+v, want decimal quantities", receipt)
	}
}

func TestFetchReceiptNullResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.FetchReceipt(context.Background(), "0xhash"); err == nil {
		t.Fatal("expected error for pending/unknown transaction")
	}
}

func TestFetchTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"from":"0xABCD","input":"0xa9059cbb00","gasPrice":"0x3b9aca00"}}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	txn, err := c.FetchTransaction(context.Background(), "0xhash")
	if err != nil {
		t.Fatalf("FetchTransaction failed: %v", err)
	}
	if txn.From != "0xabcd" {
		t.Errorf("From = %q, want lowercased", txn.From)
	}
	if txn.Input != "0xa9059cbb00" || txn.GasPrice != "1000000000" {
		t.Errorf("txn = %+v", txn)
	}
}

func TestFetchTransfersContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestClient(server.URL)
	if _, err := c.FetchTransfers(ctx, "0xwallet", models.KindNative, ""); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
