package price

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrResponseFormat is returned when a JSON endpoint answers with an HTML
// document instead. This usually means an auth/session failure upstream
// (a login page) rather than a real parse problem; callers holding a stored
// auth token should discard it when they see this error.
var ErrResponseFormat = errors.New("expected JSON response, got HTML document")

// Fetcher retrieves native-token prices from CoinGecko.
type Fetcher struct {
	client   *http.Client
	currency string

	mu        sync.Mutex
	authToken string
}

// NewFetcher creates a price fetcher for the given display currency.
func NewFetcher(currency string) *Fetcher {
	if currency == "" {
		currency = "usd"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 10 * time.Second},
		currency: strings.ToLower(currency),
	}
}

// SetAuthToken attaches an API token to subsequent requests (pro endpoints).
// Safe to call while fetches are in flight; the session manager clears the
// token from its gas-poll goroutine.
func (f *Fetcher) SetAuthToken(token string) {
	f.mu.Lock()
	f.authToken = token
	f.mu.Unlock()
}

func (f *Fetcher) token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authToken
}

// coinIDs maps chain slugs to CoinGecko coin IDs.
var coinIDs = map[string]string{
	"ethereum": "ethereum",
	"sepolia":  "ethereum",
	"base":     "ethereum",
	"arbitrum": "ethereum",
	"polygon":  "matic-network",
}

// NativePrice returns the price of a chain's native token in the configured
// currency.
func (f *Fetcher) NativePrice(chainName string) (float64, error) {
	id, ok := coinIDs[strings.ToLower(chainName)]
	if !ok {
		return 0, fmt.Errorf("unknown chain: %s", chainName)
	}

	url := fmt.Sprintf(
		"https://api.coingecko.com/api/v3/simple/price?ids=%s&vs_currencies=%s",
		id, f.currency,
	)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	if token := f.token(); token != "" {
		req.Header.Set("x-cg-pro-api-key", token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetching price: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("reading price response: %w", err)
	}

	if looksLikeHTML(body) {
		return 0, ErrResponseFormat
	}

	// Response: {"ethereum":{"usd":1234.56}}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return 0, fmt.Errorf("parsing price response: %w", err)
	}

	p, ok := raw[id][f.currency]
	if !ok {
		return 0, fmt.Errorf("price not available for: %s", id)
	}
	return p, nil
}

func looksLikeHTML(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return false
	}
	lower := bytes.ToLower(trimmed)
	return bytes.HasPrefix(lower, []byte("<!doctype html")) ||
		bytes.HasPrefix(lower, []byte("<html"))
}
