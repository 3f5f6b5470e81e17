package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"fortunex-api/internal/config"
	"fortunex-api/internal/model"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

var (
	// ErrUpstreamTimeout is retryable: the search did not answer in time.
	ErrUpstreamTimeout = errors.New("market data request timed out")
	ErrUpstreamStatus  = errors.New("market data request failed")
	ErrUpstreamDecode  = errors.New("market data response is not valid json")
)

type DexScreenerClient interface {
	// Search returns matching pairs, best match first. No match is an empty
	// slice, not an error.
	Search(ctx context.Context, query string) ([]*model.Pair, error)
}

type dexScreenerClientImpl struct {
	httpClient *http.Client
	baseURL    string
}

func NewDexScreenerClient(cfg *config.DexScreener) DexScreenerClient {
	return &dexScreenerClientImpl{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

func (c *dexScreenerClientImpl) Search(ctx context.Context, query string) ([]*model.Pair, error) {
	endpoint := c.baseURL + "/latest/dex/search?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamStatus, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUpstreamStatus, resp.StatusCode, string(b))
	}

	var result model.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamDecode, err)
	}

	pairs := make([]*model.Pair, 0, len(result.Pairs))
	for _, p := range result.Pairs {
		if p != nil {
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
