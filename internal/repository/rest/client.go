// Package rest reads the catalog and writes inventory through a PostgREST
// endpoint, the way a hosted backend exposes its tables.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nainu25/ELEMENT-01/pkg/httpclient"
)

const serviceName = "inventory"

// Client sends authenticated PostgREST requests through a circuit breaker.
type Client struct {
	http    *httpclient.CircuitBreakerClient
	baseURL string
	apiKey  string
}

// NewClient creates a client for the PostgREST API rooted at baseURL (the
// project URL, without /rest/v1).
func NewClient(baseURL, apiKey string, cb *httpclient.CircuitBreakerClient) *Client {
	return &Client{
		http:    cb,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func (c *Client) tableURL(table string, query url.Values) string {
	return c.baseURL + "/rest/v1/" + table + "?" + query.Encode()
}

func (c *Client) rpcURL(fn string) string {
	return c.baseURL + "/rest/v1/rpc/" + fn
}

// do sends a request and decodes a 2xx JSON body into out. Error responses
// are mapped with the backend's message intact.
func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", serviceName, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create %s request: %w", serviceName, err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return httpclient.ErrorFromServer(err, serviceName)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", serviceName, err)
	}
	return nil
}
