package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
)

var (
	ErrUnauthorized = errors.New("finnhub: unauthorized")
	ErrRateLimited  = errors.New("finnhub: rate limited")
)

// QuoteResponse is the payload of GET /quote.
//
//	{"c":19450.3,"d":50.3,"dp":0.26,"h":19520,"l":19380,"o":19410,"pc":19400,"t":1700000000}
type QuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	// Timestamp is epoch seconds.
	Timestamp int64 `json:"t"`
}

// PricesZero reports whether every price field is exactly zero. Finnhub
// answers this way for symbols the key is not entitled to.
func (q QuoteResponse) PricesZero() bool {
	return q.Current == 0 && q.High == 0 && q.Low == 0 && q.Open == 0 && q.PreviousClose == 0
}

// GetQuote retrieves the real-time quote for symbol.
func (c *Client) GetQuote(ctx context.Context, symbol string) (QuoteResponse, error) {
	if symbol == "" {
		return QuoteResponse{}, fmt.Errorf("creating request: empty symbol")
	}

	query := maps.Clone(c.query)
	query.Set("symbol", symbol)

	url := fmt.Sprintf("%s/quote?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return QuoteResponse{}, fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		break

	case http.StatusUnauthorized, http.StatusForbidden:
		return QuoteResponse{}, ErrUnauthorized

	case http.StatusTooManyRequests:
		return QuoteResponse{}, ErrRateLimited

	default:
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return QuoteResponse{}, fmt.Errorf("unexpected status code: %d: %s", res.StatusCode, string(b))
	}

	var quote QuoteResponse
	if err := json.NewDecoder(res.Body).Decode(&quote); err != nil {
		return QuoteResponse{}, fmt.Errorf("decoding quote response: %w", err)
	}
	return quote, nil
}
