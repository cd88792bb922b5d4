package node

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"alephium-gateway/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 2
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 5 * time.Second
)

// HTTPClient implements Client against a node REST API and an explorer
// REST API.
type HTTPClient struct {
	nodeEndpoint     string
	explorerEndpoint string
	client           *http.Client
	maxRetries       int
	retryDelay       time.Duration
	maxDelay         time.Duration
	observer         UpstreamObserver
}

// UpstreamObserver receives the outcome of one upstream HTTP attempt:
// the target host, the response status code (or "transport_error") and
// the attempt latency in seconds. Labels stay host-granular to keep
// metric cardinality bounded.
type UpstreamObserver func(endpoint, status string, seconds float64)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithUpstreamObserver registers a callback invoked after every
// upstream attempt, including retried ones.
func WithUpstreamObserver(fn UpstreamObserver) ClientOption {
	return func(c *HTTPClient) {
		c.observer = fn
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a client for the given node and explorer
// endpoints.
func NewHTTPClient(nodeEndpoint, explorerEndpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		nodeEndpoint:     nodeEndpoint,
		explorerEndpoint: explorerEndpoint,
		client:           &http.Client{Timeout: DefaultTimeout},
		maxRetries:       DefaultMaxRetries,
		retryDelay:       DefaultRetryDelay,
		maxDelay:         DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

// getJSON performs a GET with retries and exponential backoff,
// decoding a 2xx body into result. Status codes are mapped onto the
// domain error taxonomy; 4xx responses other than 429 are not retried.
func (c *HTTPClient) getJSON(ctx context.Context, rawURL string, result any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			c.observe(req.URL.Host, "transport_error", start)
			lastErr = fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
			continue
		}
		c.observe(req.URL.Host, strconv.Itoa(resp.StatusCode), start)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: rate limited (429)", domain.ErrUpstreamUnavailable)
			continue
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, rawURL)
		case resp.StatusCode == http.StatusUnauthorized,
			resp.StatusCode == http.StatusForbidden,
			resp.StatusCode == http.StatusUnavailableForLegalReasons:
			return fmt.Errorf("%w: status %d", domain.ErrRestricted, resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("%w: unexpected status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
		}

		if result != nil {
			if err := json.Unmarshal(body, result); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrParse, err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *HTTPClient) observe(endpoint, status string, start time.Time) {
	if c.observer != nil {
		c.observer(endpoint, status, time.Since(start).Seconds())
	}
}

// GetBalance returns the current balance of an address.
func (c *HTTPClient) GetBalance(ctx context.Context, address string) (*domain.AddressBalance, error) {
	var balance domain.AddressBalance
	u := fmt.Sprintf("%s/addresses/%s/balance", c.nodeEndpoint, url.PathEscape(address))
	if err := c.getJSON(ctx, u, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// GetUTXOs returns the unspent outputs held by an address.
func (c *HTTPClient) GetUTXOs(ctx context.Context, address string) ([]domain.UTXO, error) {
	var result struct {
		UTXOs []domain.UTXO `json:"utxos"`
	}
	u := fmt.Sprintf("%s/addresses/%s/utxos", c.nodeEndpoint, url.PathEscape(address))
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	return result.UTXOs, nil
}

// GuessTokenType asks the node to classify a token's standard.
func (c *HTTPClient) GuessTokenType(ctx context.Context, tokenID string) (string, error) {
	var result struct {
		TokenType string `json:"tokenType"`
	}
	u := fmt.Sprintf("%s/tokens/%s/type", c.nodeEndpoint, url.PathEscape(tokenID))
	if err := c.getJSON(ctx, u, &result); err != nil {
		return "", err
	}
	if result.TokenType == "" {
		return "", fmt.Errorf("%w: empty token type", domain.ErrParse)
	}
	return result.TokenType, nil
}

// tokenMetadataResponse is the raw fungible metadata payload. Name and
// symbol are hex-encoded byte strings.
type tokenMetadataResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// GetTokenMetadata fetches on-chain fungible-token metadata. The
// returned record carries the hex-encoded originals in RawName and
// RawSymbol; decoding is the enricher's job.
func (c *HTTPClient) GetTokenMetadata(ctx context.Context, tokenID string) (*domain.TokenMetadata, error) {
	var result tokenMetadataResponse
	u := fmt.Sprintf("%s/tokens/%s/metadata", c.nodeEndpoint, url.PathEscape(tokenID))
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	return &domain.TokenMetadata{
		ID:          tokenID,
		RawName:     result.Name,
		RawSymbol:   result.Symbol,
		Decimals:    result.Decimals,
		TotalSupply: result.TotalSupply,
	}, nil
}

// GetNFTMetadata fetches the on-chain pointer to an NFT's off-chain
// metadata document.
func (c *HTTPClient) GetNFTMetadata(ctx context.Context, tokenID string) (*domain.NFTPointer, error) {
	var result domain.NFTPointer
	u := fmt.Sprintf("%s/tokens/%s/nft-metadata", c.nodeEndpoint, url.PathEscape(tokenID))
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if result.TokenURI == "" {
		return nil, fmt.Errorf("%w: missing tokenUri", domain.ErrParse)
	}
	return &result, nil
}

// GetAddressTransactions pages through an address's confirmed
// transactions, newest first.
func (c *HTTPClient) GetAddressTransactions(ctx context.Context, address string, page, limit int) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	u := fmt.Sprintf("%s/addresses/%s/transactions?page=%d&limit=%d",
		c.explorerEndpoint, url.PathEscape(address), page, limit)
	if err := c.getJSON(ctx, u, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// historyEndpoints are the candidate authoritative history routes,
// tried in order. Different explorer versions expose different paths.
var historyEndpoints = []string{
	"/addresses/%s/balance-history?fromTs=%d&toTs=%d",
	"/addresses/%s/amount-history?fromTs=%d&toTs=%d&interval-type=daily",
}

// GetBalanceHistory tries each candidate endpoint until one returns a
// well-formed, non-empty series.
func (c *HTTPClient) GetBalanceHistory(ctx context.Context, address string, fromTs, toTs int64) ([]domain.HistoryAPIPoint, error) {
	var lastErr error = domain.ErrNotFound

	for _, pattern := range historyEndpoints {
		u := c.explorerEndpoint + fmt.Sprintf(pattern, url.PathEscape(address), fromTs, toTs)

		var points []domain.HistoryAPIPoint
		if err := c.getJSON(ctx, u, &points); err != nil {
			lastErr = err
			continue
		}
		if len(points) == 0 {
			lastErr = fmt.Errorf("%w: empty history series", domain.ErrNotFound)
			continue
		}
		return points, nil
	}

	return nil, fmt.Errorf("no authoritative history endpoint: %w", lastErr)
}

// GetNetworkStats returns a chain health summary from the explorer.
func (c *HTTPClient) GetNetworkStats(ctx context.Context) (*domain.NetworkStats, error) {
	var supply struct {
		Total       string `json:"total"`
		Circulating string `json:"circulating"`
	}
	if err := c.getJSON(ctx, c.explorerEndpoint+"/infos/supply", &supply); err != nil {
		return nil, err
	}

	var chain struct {
		HashRate   string  `json:"hashrate"`
		Difficulty string  `json:"difficulty"`
		BlockTime  float64 `json:"blockTime"`
		Height     int64   `json:"height"`
	}
	if err := c.getJSON(ctx, c.explorerEndpoint+"/infos/heights", &chain); err != nil {
		return nil, err
	}

	return &domain.NetworkStats{
		HashRate:          chain.HashRate,
		Difficulty:        chain.Difficulty,
		TotalSupply:       supply.Total,
		CirculatingSupply: supply.Circulating,
		BlockTime:         chain.BlockTime,
		CurrentHeight:     chain.Height,
	}, nil
}

// FetchJSON fetches an arbitrary HTTPS metadata document into v.
// Callers pass already-resolved gateway URLs; scheme rewriting lives in
// the tokens package.
func (c *HTTPClient) FetchJSON(ctx context.Context, rawURL string, v any) error {
	return c.getJSON(ctx, rawURL, v)
}
