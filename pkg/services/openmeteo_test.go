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

func TestOpenMeteoDaily(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "45.9200", r.URL.Query().Get("latitude"))
		assert.Equal(t, "3", r.URL.Query().Get("forecast_days"))
		_, _ = w.Write([]byte(`{
			"daily": {
				"time": ["2025-06-14", "2025-06-15", "2025-06-16"],
				"temperature_2m_max": [18.2, 20.1, 15.0],
				"temperature_2m_min": [7.5, 9.0, 6.1],
				"precipitation_sum": [0.0, 2.4, 11.0],
				"wind_speed_10m_max": [12.0, 18.5, 30.2],
				"weather_code": [1, 61, 95]
			}
		}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, zerolog.Nop())
	forecasts, err := client.Daily(context.Background(), 45.92, 6.87, 3)
	require.NoError(t, err)
	require.Len(t, forecasts, 3)

	assert.Equal(t, "2025-06-14", forecasts[0].Date)
	assert.InDelta(t, 18.2, forecasts[0].TemperatureMaxC, 1e-9)
	assert.Equal(t, "mainly clear", forecasts[0].WeatherCondition)
	assert.Equal(t, "slight rain", forecasts[1].WeatherCondition)
	assert.Equal(t, "thunderstorm", forecasts[2].WeatherCondition)
}

func TestOpenMeteoHourly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "6", r.URL.Query().Get("forecast_hours"))
		_, _ = w.Write([]byte(`{
			"hourly": {
				"time": ["2025-06-14T06:00", "2025-06-14T07:00"],
				"temperature_2m": [8.1, 9.4],
				"precipitation": [0.0, 0.2],
				"wind_speed_10m": [5.0, 7.2],
				"cloud_cover": [10, 45]
			}
		}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, zerolog.Nop())
	forecasts, err := client.Hourly(context.Background(), 45.92, 6.87, 6)
	require.NoError(t, err)
	require.Len(t, forecasts, 2)
	assert.Equal(t, 45, forecasts[1].CloudCoverPct)
}

func TestOpenMeteoSunriseSunset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-06-14", r.URL.Query().Get("start_date"))
		_, _ = w.Write([]byte(`{
			"daily": {
				"time": ["2025-06-14"],
				"sunrise": ["2025-06-14T05:42"],
				"sunset": ["2025-06-14T21:28"]
			}
		}`))
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, zerolog.Nop())
	sun, err := client.SunriseSunset(context.Background(), 45.92, 6.87, "2025-06-14")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-14T05:42", sun.Sunrise)
	assert.Equal(t, "2025-06-14T21:28", sun.Sunset)
}

func TestOpenMeteoServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewOpenMeteoClient(srv.URL, zerolog.Nop())
	_, err := client.Daily(context.Background(), 45.92, 6.87, 3)
	assert.ErrorContains(t, err, "status 502")
}
