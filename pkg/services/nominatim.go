package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/mate/pkg/tools"
)

const (
	defaultNominatimURL = "https://nominatim.openstreetmap.org"

	// Nominatim's usage policy requires an identifying user agent.
	nominatimUserAgent = "mate-trail-explorer/0.1"
)

// NominatimClient geocodes through the OpenStreetMap Nominatim API.
type NominatimClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewNominatimClient creates a Nominatim client. An empty baseURL uses the
// public API.
func NewNominatimClient(baseURL string, logger zerolog.Logger) *NominatimClient {
	if baseURL == "" {
		baseURL = defaultNominatimURL
	}
	return &NominatimClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	Address     struct {
		Country string `json:"country"`
		State   string `json:"state"`
	} `json:"address"`
}

// Geocode resolves a place name to candidate coordinates.
func (c *NominatimClient) Geocode(ctx context.Context, query string, limit int) ([]tools.Place, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")
	params.Set("limit", strconv.Itoa(limit))

	var results []nominatimResult
	if err := c.get(ctx, "/search", params, &results); err != nil {
		return nil, err
	}

	places := make([]tools.Place, 0, len(results))
	for _, r := range results {
		place, err := r.toPlace()
		if err != nil {
			c.logger.Warn().Err(err).Str("name", r.DisplayName).Msg("Skipping malformed geocoding result")
			continue
		}
		places = append(places, place)
	}
	return places, nil
}

// ReverseGeocode resolves coordinates to the nearest named place.
func (c *NominatimClient) ReverseGeocode(ctx context.Context, lat, lon float64) (tools.Place, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	params.Set("format", "jsonv2")
	params.Set("addressdetails", "1")

	var result nominatimResult
	if err := c.get(ctx, "/reverse", params, &result); err != nil {
		return tools.Place{}, err
	}
	if result.DisplayName == "" {
		return tools.Place{}, fmt.Errorf("no place found at %.4f, %.4f", lat, lon)
	}
	return result.toPlace()
}

func (r nominatimResult) toPlace() (tools.Place, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return tools.Place{}, fmt.Errorf("invalid latitude %q: %w", r.Lat, err)
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return tools.Place{}, fmt.Errorf("invalid longitude %q: %w", r.Lon, err)
	}
	return tools.Place{
		Name:      r.DisplayName,
		Latitude:  lat,
		Longitude: lon,
		Country:   r.Address.Country,
		Region:    r.Address.State,
	}, nil
}

func (c *NominatimClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build geocoding request: %w", err)
	}
	req.Header.Set("User-Agent", nominatimUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("geocoding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocoding request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode geocoding response: %w", err)
	}
	return nil
}
