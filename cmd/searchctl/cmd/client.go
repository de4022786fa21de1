package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/utafrali/contentsearch/pkg/httpclient"
)

const apiName = "content-search"

// apiClient calls the search service's /api/v1 endpoints and unwraps the
// {data} envelope.
type apiClient struct {
	base  string
	token string
	http  *httpclient.Client
}

func newAPIClient(base, token string, timeout time.Duration) *apiClient {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	cfg.MaxRetries = 1
	return &apiClient{
		base:  strings.TrimRight(base, "/") + "/api/v1",
		token: token,
		http:  httpclient.New(cfg),
	}
}

// call sends body as JSON (when non-nil) and decodes the response data
// into dst (when non-nil).
func (c *apiClient) call(ctx context.Context, method, path string, body, dst any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, apiName)
	}
	defer func() { _ = resp.Body.Close() }()

	if dst == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", apiName, err)
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		return fmt.Errorf("decode %s data: %w", apiName, err)
	}
	return nil
}
