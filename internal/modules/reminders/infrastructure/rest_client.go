package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RESTClient wraps http.Client with base URL and service token handling shared by adapters.
type RESTClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRESTClient(baseURL, serviceToken string, timeout time.Duration, client *http.Client) *RESTClient {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if client == nil {
		client = &http.Client{Timeout: timeoutOrDefault(timeout)}
	} else if timeout > 0 {
		client.Timeout = timeout
	}
	return &RESTClient{baseURL: trimmed, token: strings.TrimSpace(serviceToken), client: client}
}

func (c *RESTClient) NewRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(endpoint, "/"), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// statusError carries a non-2xx upstream status.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.Status)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out.
func (c *RESTClient) GetJSON(ctx context.Context, endpoint string, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func timeoutOrDefault(value time.Duration) time.Duration {
	if value <= 0 {
		return 10 * time.Second
	}
	return value
}
