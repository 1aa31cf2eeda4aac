// -----------------------------------------------------------------------
// baseClient - the rate-limited HTTP transport shared by every adapter in
// this package. Grounded on the teacher's eodhd.Client functional-options
// pattern (internal/eodhd/client.go): baseURL, *http.Client, arbor logger,
// and a rate.Limiter wait before every outbound call.
// -----------------------------------------------------------------------

package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"golang.org/x/time/rate"
)

// baseClient wraps an adapter's HTTP transport: timeout, rate limiter, and
// request logging, common to DBS/PhEDEx/site-catalog/substrate/request-
// manager. Each adapter embeds it and adds its own typed methods.
type baseClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

func newBaseClient(name string, cfg common.AdapterConfig, logger arbor.ILogger) *baseClient {
	timeout := common.ParseDurationOrDefault(cfg.Timeout, 30*time.Second)
	interval := common.ParseDurationOrDefault(cfg.RateLimit, 100*time.Millisecond)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &baseClient{
		name:       name,
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Every(interval), burst),
	}
}

func (c *baseClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	return c.do(ctx, http.MethodGet, path, params, nil, result)
}

func (c *baseClient) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

func (c *baseClient) do(ctx context.Context, method, path string, params url.Values, body interface{}, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request body: %w", c.name, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", c.name, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().Str("adapter", c.name).Str("url", reqURL).Msg("adapter request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody), Endpoint: path}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.name, err)
	}
	return nil
}
