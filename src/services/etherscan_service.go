// src/services/etherscan_service.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/username/chainledger/src/logger"
	"github.com/username/chainledger/src/models"
	"github.com/username/chainledger/src/parsers"
	"github.com/username/chainledger/src/utils"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// EtherscanClient is the transfer-history and transaction-detail provider.
// Requests are paced by a shared rate limiter and retried with exponential
// backoff up to a bounded attempt count; after that the fetch fails hard.
type EtherscanClient struct {
	httpClient  http.Client
	apiKey      string
	baseURL     string
	limiter     *rate.Limiter
	maxAttempts int
	backoffBase time.Duration
}

func NewEtherscanClient(apiKey, baseURL string, requestsPerSec float64, maxAttempts int, backoffBase, timeout time.Duration) *EtherscanClient {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	return &EtherscanClient{
		httpClient: http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

var listActions = map[models.TransferKind]string{
	models.KindNative:   "txlist",
	models.KindInternal: "txlistinternal",
	models.KindERC20:    "tokentx",
	models.KindERC1155:  "token1155tx",
}

// FetchTransfers retrieves one kind of transfer list for an address,
// ascending by block, bounded by endBlock when set.
func (c *EtherscanClient) FetchTransfers(ctx context.Context, address string, kind models.TransferKind, endBlock string) ([]models.Transfer, error) {
	action, ok := listActions[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported transfer kind: %s", kind)
	}

	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", action)
	params.Set("address", address)
	params.Set("startblock", "0")
	if endBlock != "" {
		params.Set("endblock", endBlock)
	}
	params.Set("sort", "asc")
	params.Set("apikey", c.apiKey)

	body, err := c.doWithRetry(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching %s for %s: %w", action, address, err)
	}

	parser, err := parsers.GetParser(kind)
	if err != nil {
		return nil, err
	}
	transfers, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s response for %s: %w", action, address, err)
	}
	logger.L.Debug("Fetched transfer list", "address", address, "kind", kind, "count", len(transfers))
	return transfers, nil
}

type proxyResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// FetchReceipt retrieves the mined receipt of a transaction via the proxy
// module. JSON-RPC hex quantities are normalized to decimal strings.
func (c *EtherscanClient) FetchReceipt(ctx context.Context, hash string) (*models.Receipt, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionReceipt")
	params.Set("txhash", hash)
	params.Set("apikey", c.apiKey)

	body, err := c.doWithRetry(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching receipt for %s: %w", hash, err)
	}

	var resp proxyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding receipt response for %s: %w", hash, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("receipt lookup for %s failed: %s", hash, resp.Error.Message)
	}
	if string(resp.Result) == "null" || len(resp.Result) == 0 {
		return nil, fmt.Errorf("no receipt found for %s", hash)
	}

	var raw struct {
		GasUsed           string `json:"gasUsed"`
		EffectiveGasPrice string `json:"effectiveGasPrice"`
	}
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("decoding receipt fields for %s: %w", hash, err)
	}
	return &models.Receipt{
		Hash:              hash,
		GasUsed:           utils.HexQuantity(raw.GasUsed),
		EffectiveGasPrice: utils.HexQuantity(raw.EffectiveGasPrice),
	}, nil
}

// FetchTransaction retrieves the fee payer and call data of a transaction.
func (c *EtherscanClient) FetchTransaction(ctx context.Context, hash string) (*models.Transaction, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_getTransactionByHash")
	params.Set("txhash", hash)
	params.Set("apikey", c.apiKey)

	body, err := c.doWithRetry(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching transaction for %s: %w", hash, err)
	}

	var resp proxyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding transaction response for %s: %w", hash, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("transaction lookup for %s failed: %s", hash, resp.Error.Message)
	}
	if string(resp.Result) == "null" || len(resp.Result) == 0 {
		return nil, fmt.Errorf("no transaction found for %s", hash)
	}

	var raw struct {
		From     string `json:"from"`
		Input    string `json:"input"`
		GasPrice string `json:"gasPrice"`
	}
	if err := json.Unmarshal(resp.Result, &raw); err != nil {
		return nil, fmt.Errorf("decoding transaction fields for %s: %w", hash, err)
	}
	return &models.Transaction{
		Hash:     hash,
		From:     strings.ToLower(raw.From),
		Input:    raw.Input,
		GasPrice: utils.HexQuantity(raw.GasPrice),
	}, nil
}

// doWithRetry performs one GET against the API with pacing and bounded
// exponential backoff. Etherscan signals rate limiting inside a 200 body
// ("Max rate limit reached"), so that is retried like a transport error.
func (c *EtherscanClient) doWithRetry(ctx context.Context, params url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase << (attempt - 1)
			logger.L.Warn("Retrying etherscan request", "attempt", attempt+1, "backoff", backoff.String(), "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.doOnce(ctx, params)
		if err == nil {
			return body, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *EtherscanClient) doOnce(ctx context.Context, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "chainledger/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if strings.Contains(string(body), "Max rate limit reached") {
		return nil, fmt.Errorf("etherscan rate limit reached")
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
