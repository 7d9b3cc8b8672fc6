package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// API is a small JSON-over-HTTP client.
type API struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewAPI(client *http.Client, baseURL, userAgent string) *API {
	if client == nil {
		client = http.DefaultClient
	}
	return &API{client: client, baseURL: baseURL, userAgent: userAgent}
}

// Get decodes the JSON response of GET baseURL+path?params into v.
func (a *API) Get(ctx context.Context, path string, params url.Values, v any) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if a.userAgent != "" {
		req.Header.Set("User-Agent", a.userAgent)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: bad status: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
