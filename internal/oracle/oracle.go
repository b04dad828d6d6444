// Package oracle fetches reference prices for round settlement. The engine
// treats the returned rate as ground truth; the last_updated timestamp is
// carried through for logging but not validated for staleness.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Data is the oracle's reference price for a symbol pair.
type Data struct {
	Rate        decimal.Decimal `json:"rate"`
	LastUpdated int64           `json:"last_updated"`
}

// Source provides reference prices. Implementations must be atomic: an
// error means no price was obtained and the caller aborts.
type Source interface {
	ReferenceData(ctx context.Context, baseSymbol, quoteSymbol string) (Data, error)
}

// HTTPSource queries a reference-data endpoint over HTTP:
//
//	GET {base}/reference_data?base_symbol=X&quote_symbol=Y
//
// and expects a JSON Data body.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP oracle client for the given endpoint.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSource) ReferenceData(ctx context.Context, baseSymbol, quoteSymbol string) (Data, error) {
	q := url.Values{}
	q.Set("base_symbol", baseSymbol)
	q.Set("quote_symbol", quoteSymbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/reference_data?"+q.Encode(), nil)
	if err != nil {
		return Data{}, fmt.Errorf("oracle: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Data{}, fmt.Errorf("oracle: query %s/%s: %w", baseSymbol, quoteSymbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Data{}, fmt.Errorf("oracle: query %s/%s: status %d", baseSymbol, quoteSymbol, resp.StatusCode)
	}

	var data Data
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Data{}, fmt.Errorf("oracle: decode response: %w", err)
	}
	if data.Rate.IsNegative() {
		return Data{}, fmt.Errorf("oracle: negative rate %s for %s/%s", data.Rate, baseSymbol, quoteSymbol)
	}
	return data, nil
}

// Static is a Source returning a fixed price. Used in tests and as a
// stand-in while wiring environments without a live oracle.
type Static struct {
	Rate        decimal.Decimal
	LastUpdated int64
	Err         error
}

func (s *Static) ReferenceData(context.Context, string, string) (Data, error) {
	if s.Err != nil {
		return Data{}, s.Err
	}
	return Data{Rate: s.Rate, LastUpdated: s.LastUpdated}, nil
}
