package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// KycClient calls the external verification provider. Registration stores
// whatever verdict the provider returns.
type KycClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewKycClient(baseURL string) KycClient {
	return KycClient{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		},
		baseURL: baseURL,
	}
}

func (c KycClient) Verify(ctx context.Context, owner string, name string) (bool, error) {
	reqURL := fmt.Sprintf(
		"%s/verifications?owner=%s&name=%s",
		c.baseURL,
		url.QueryEscape(owner),
		url.QueryEscape(name),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("could not call verification provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("unexpected status code from verification provider: %d", resp.StatusCode)
	}

	var body struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("could not decode verification response: %w", err)
	}

	return body.Verified, nil
}
