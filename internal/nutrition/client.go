package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Nutrient is one per-serving nutrient entry returned by the lookup
// service.
type Nutrient struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Food is one search hit from the nutrition-data collaborator.
type Food struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	NutritionPerServing []Nutrient `json:"nutritionPerServing"`
}

// Client is the nutrition-data lookup collaborator: a remote search
// with no side effects on this service's state.
type Client interface {
	Search(ctx context.Context, query string, maxResults int) ([]Food, error)
}

type httpClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an HTTP nutrition lookup client.
func NewClient(baseURL, apiKey string) Client {
	return &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type searchResponse struct {
	Foods []Food `json:"foods"`
}

func (c *httpClient) Search(ctx context.Context, query string, maxResults int) ([]Food, error) {
	u, err := url.Parse(c.baseURL + "/foods/search")
	if err != nil {
		return nil, fmt.Errorf("nutrition: invalid base url: %w", err)
	}
	q := u.Query()
	q.Set("query", query)
	q.Set("maxResults", strconv.Itoa(maxResults))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("nutrition: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nutrition: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nutrition: search returned status %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("nutrition: decode response: %w", err)
	}
	return out.Foods, nil
}
