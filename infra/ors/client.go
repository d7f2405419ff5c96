// Package ors implements the travel.Oracle against the OpenRouteService
// matrix API.
package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/foodbridge/dispatch/core/model"
)

// DefaultBaseURL is the public OpenRouteService endpoint.
const DefaultBaseURL = "https://api.openrouteservice.org"

const requestTimeout = 10 * time.Second

// Client queries the ORS matrix endpoint for travel durations.
type Client struct {
	baseURL string
	apiKey  string
	profile string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for self-hosted ORS and
// tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithProfile sets the routing profile. Default is driving-car.
func WithProfile(p string) Option {
	return func(c *Client) { c.profile = p }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New creates a Client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		profile: "driving-car",
		http:    &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type matrixRequest struct {
	Locations    [][2]float64 `json:"locations"`
	Sources      []int        `json:"sources"`
	Destinations []int        `json:"destinations"`
	Metrics      []string     `json:"metrics"`
}

type matrixResponse struct {
	// Durations come back in seconds; null marks an unreachable pair.
	Durations [][]*float64 `json:"durations"`
}

// Matrix returns travel durations in minutes between every origin and every
// destination. Unreachable pairs are reported as +Inf.
func (c *Client) Matrix(ctx context.Context, origins, destinations []model.Coordinate) ([][]float64, error) {
	if len(origins) == 0 || len(destinations) == 0 {
		return [][]float64{}, nil
	}

	// ORS wants one flat location list with index-based source and
	// destination selectors, in lon-lat order.
	locations := make([][2]float64, 0, len(origins)+len(destinations))
	sources := make([]int, len(origins))
	dests := make([]int, len(destinations))
	for i, o := range origins {
		locations = append(locations, [2]float64{o.Lon, o.Lat})
		sources[i] = i
	}
	for i, d := range destinations {
		locations = append(locations, [2]float64{d.Lon, d.Lat})
		dests[i] = len(origins) + i
	}

	body, err := json.Marshal(matrixRequest{
		Locations:    locations,
		Sources:      sources,
		Destinations: dests,
		Metrics:      []string{"duration"},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/matrix/%s", c.baseURL, c.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ors matrix request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ors matrix: HTTP %d: %s", resp.StatusCode, string(b))
	}

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode ors response: %w", err)
	}
	if len(mr.Durations) != len(origins) {
		return nil, fmt.Errorf("ors matrix: got %d rows, want %d", len(mr.Durations), len(origins))
	}

	out := make([][]float64, len(origins))
	for i, row := range mr.Durations {
		if len(row) != len(destinations) {
			return nil, fmt.Errorf("ors matrix: row %d has %d cells, want %d", i, len(row), len(destinations))
		}
		minutes := make([]float64, len(row))
		for j, secs := range row {
			if secs == nil {
				minutes[j] = math.Inf(1)
				continue
			}
			minutes[j] = *secs / 60
		}
		out[i] = minutes
	}
	return out, nil
}
