package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Chamonix", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[
			{"display_name": "Chamonix-Mont-Blanc, France", "lat": "45.9237",
			 "lon": "6.8694", "address": {"country": "France", "state": "Auvergne-Rhône-Alpes"}},
			{"display_name": "Bad Result", "lat": "not-a-number", "lon": "6.9", "address": {}}
		]`))
	}))
	defer srv.Close()

	client := NewNominatimClient(srv.URL, zerolog.Nop())
	places, err := client.Geocode(context.Background(), "Chamonix", 3)
	require.NoError(t, err)

	// The malformed result is skipped, not fatal.
	require.Len(t, places, 1)
	assert.Equal(t, "Chamonix-Mont-Blanc, France", places[0].Name)
	assert.InDelta(t, 45.9237, places[0].Latitude, 1e-9)
	assert.Equal(t, "France", places[0].Country)
}

func TestNominatimReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		_, _ = w.Write([]byte(`{"display_name": "Zermatt, Switzerland", "lat": "46.0207",
			"lon": "7.7491", "address": {"country": "Switzerland"}}`))
	}))
	defer srv.Close()

	client := NewNominatimClient(srv.URL, zerolog.Nop())
	place, err := client.ReverseGeocode(context.Background(), 46.0207, 7.7491)
	require.NoError(t, err)
	assert.Equal(t, "Zermatt, Switzerland", place.Name)
}

func TestNominatimReverseGeocodeNothingFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewNominatimClient(srv.URL, zerolog.Nop())
	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	assert.ErrorContains(t, err, "no place found")
}
