// Package geocode implements the reverse-geocoding collaborator against
// a Nominatim-style HTTP endpoint. Results only enrich parking events;
// every failure degrades to an empty address upstream.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/curbwatch/parking-backend-go/internal/models"
)

// Client is an HTTP reverse geocoder
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a reverse geocoding client for the given endpoint,
// e.g. "https://nominatim.openstreetmap.org".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// Reverse resolves a coordinate to a display address
func (c *Client) Reverse(ctx context.Context, coord models.Coordinate) (string, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(fmt.Sprintf("%.6f", coord.Lat)),
		url.QueryEscape(fmt.Sprintf("%.6f", coord.Lon)))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", "parking-backend-go")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoding returned status %d", resp.StatusCode)
	}

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode geocoding response: %w", err)
	}

	return decoded.DisplayName, nil
}
