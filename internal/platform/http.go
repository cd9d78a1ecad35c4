package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerPrefer        = "Prefer"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
	sdkUserAgent        = "snippet-vault-go/1.0"
)

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	token  string
	header http.Header
}

// do performs an HTTP request and decodes a JSON response into result.
// Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, r request, result any) error {
	reqURL := c.baseURL + r.path
	if len(r.query) > 0 {
		reqURL += "?" + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		bodyBytes, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("platform: marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("platform: create request: %w", err)
	}

	req.Header.Set(headerUserAgent, sdkUserAgent)
	req.Header.Set("Accept", contentTypeJSON)
	if r.body != nil {
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if r.token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+r.token)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("platform: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseError(resp.StatusCode, respBody)
	}

	if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("platform: parse response: %w", err)
		}
	}
	return nil
}
