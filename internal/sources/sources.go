// Package sources holds one adapter per external provider. Adapters
// fetch a fixed endpoint and parse the payload into RawObservations;
// items that cannot be parsed are skipped and logged, never fatal.
package sources

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

const userAgent = "disaster-watch/1.0 (github.com/geowatch/disaster-watch)"

// Adapter is a provider-specific fetch+parse unit.
type Adapter interface {
	// Code is the short source identifier used in dedup keys.
	Code() string
	Fetch(ctx context.Context) ([]models.RawObservation, error)
}

type client struct {
	http *http.Client
}

func newClient(timeout time.Duration) client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return client{http: &http.Client{Timeout: timeout}}
}

func (c client) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error doing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

func (c client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}

func (c client) getXML(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url, "application/xml")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := xml.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("error decoding resp.Body: %w", err)
	}
	return nil
}

func (c client) getBody(ctx context.Context, url string) (string, error) {
	body, err := c.get(ctx, url, "")
	if err != nil {
		return "", err
	}
	defer body.Close()

	b, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("error reading resp.Body: %w", err)
	}
	return string(b), nil
}

func ptr(f float64) *float64 { return &f }
