package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	apperrors "github.com/oglimmer/mdalert/errors"
)

// Fetcher retrieves the current alert list with a bearer token.
type Fetcher interface {
	Fetch(ctx context.Context, accessToken string) ([]AlertItem, error)
}

// Client fetches the alert listing from the monitoring backend.
type Client struct {
	alertsURL  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates an alerts API client.
func NewClient(alertsURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		alertsURL:  alertsURL,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "alerts").Logger(),
	}
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, accessToken string) ([]AlertItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.alertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building alerts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewNetwork("alerts.fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewProtocol("alerts.fetch",
			fmt.Sprintf("alerts endpoint returned status %d", resp.StatusCode))
	}

	var items []AlertItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, apperrors.NewDecode("alerts.fetch", err)
	}

	return items, nil
}
