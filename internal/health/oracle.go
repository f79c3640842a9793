package health

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// OracleChecker implements health checking for the embedding inference server.
type OracleChecker struct {
	url    string
	client *http.Client
}

// NewOracleChecker creates a health checker for the embedding server.
// url is the server's base URL; reachability is probed at the root path
// since inference servers rarely expose a dedicated health endpoint.
func NewOracleChecker(url string) *OracleChecker {
	return &OracleChecker{
		url: url,
		client: &http.Client{
			Timeout: 3 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// HealthCheck probes the embedding server with a GET request.
func (o *OracleChecker) HealthCheck(ctx context.Context) error {
	if o.url == "" {
		return fmt.Errorf("embedding server url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach embedding server: %w", err)
	}
	defer resp.Body.Close()

	// Only 2xx counts as healthy; other codes indicate the service is
	// unavailable or misconfigured.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("embedding server unhealthy: unexpected status code %d", resp.StatusCode)
	}

	return nil
}
