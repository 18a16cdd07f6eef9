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

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tour du mont blanc", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{
			"Heading": "Tour du Mont Blanc",
			"AbstractText": "A long-distance walk around the Mont Blanc massif.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Tour_du_Mont_Blanc",
			"RelatedTopics": [
				{"Text": "Mont Blanc massif", "FirstURL": "https://example.org/massif"},
				{"Text": "", "FirstURL": "https://example.org/empty"},
				{"Text": "Chamonix valley", "FirstURL": "https://example.org/chamonix"}
			]
		}`))
	}))
	defer srv.Close()

	client := NewDuckDuckGoClient(srv.URL, zerolog.Nop())
	results, err := client.Search(context.Background(), "tour du mont blanc", 2)
	require.NoError(t, err)

	// Abstract first, then related topics, capped at maxResults and
	// skipping empty entries.
	require.Len(t, results, 2)
	assert.Equal(t, "Tour du Mont Blanc", results[0].Title)
	assert.Equal(t, "Mont Blanc massif", results[1].Title)
}

func TestDuckDuckGoSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"RelatedTopics": []}`))
	}))
	defer srv.Close()

	client := NewDuckDuckGoClient(srv.URL, zerolog.Nop())
	results, err := client.Search(context.Background(), "zzz", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}
