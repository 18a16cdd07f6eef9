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

const defaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// wmoConditions maps WMO weather interpretation codes to short text.
var wmoConditions = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	71: "slight snowfall",
	73: "moderate snowfall",
	75: "heavy snowfall",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

// OpenMeteoClient fetches forecasts from the Open-Meteo API. The API needs
// no key.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
	logger  zerolog.Logger
}

// NewOpenMeteoClient creates an Open-Meteo client. An empty baseURL uses
// the public API.
func NewOpenMeteoClient(baseURL string, logger zerolog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = defaultOpenMeteoURL
	}
	return &OpenMeteoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

type openMeteoResponse struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WindSpeedMax     []float64 `json:"wind_speed_10m_max"`
		WeatherCode      []int     `json:"weather_code"`
		Sunrise          []string  `json:"sunrise"`
		Sunset           []string  `json:"sunset"`
	} `json:"daily"`
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Precipitation []float64 `json:"precipitation"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		CloudCover    []int     `json:"cloud_cover"`
	} `json:"hourly"`
}

// Daily returns up to days daily forecasts for the coordinates.
func (c *OpenMeteoClient) Daily(ctx context.Context, lat, lon float64, days int) ([]tools.DailyForecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max,weather_code")
	params.Set("forecast_days", strconv.Itoa(days))
	params.Set("timezone", "auto")

	var resp openMeteoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	forecasts := make([]tools.DailyForecast, 0, len(resp.Daily.Time))
	for i, date := range resp.Daily.Time {
		f := tools.DailyForecast{Date: date}
		if i < len(resp.Daily.TemperatureMin) {
			f.TemperatureMinC = resp.Daily.TemperatureMin[i]
		}
		if i < len(resp.Daily.TemperatureMax) {
			f.TemperatureMaxC = resp.Daily.TemperatureMax[i]
		}
		if i < len(resp.Daily.PrecipitationSum) {
			f.PrecipitationMM = resp.Daily.PrecipitationSum[i]
		}
		if i < len(resp.Daily.WindSpeedMax) {
			f.WindSpeedKPH = resp.Daily.WindSpeedMax[i]
		}
		if i < len(resp.Daily.WeatherCode) {
			f.WeatherCode = resp.Daily.WeatherCode[i]
			f.WeatherCondition = wmoConditions[f.WeatherCode]
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

// Hourly returns up to hours hourly forecasts for the coordinates.
func (c *OpenMeteoClient) Hourly(ctx context.Context, lat, lon float64, hours int) ([]tools.HourlyForecast, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("hourly", "temperature_2m,precipitation,wind_speed_10m,cloud_cover")
	params.Set("forecast_hours", strconv.Itoa(hours))
	params.Set("timezone", "auto")

	var resp openMeteoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, err
	}

	forecasts := make([]tools.HourlyForecast, 0, len(resp.Hourly.Time))
	for i, ts := range resp.Hourly.Time {
		f := tools.HourlyForecast{Time: ts}
		if i < len(resp.Hourly.Temperature) {
			f.TemperatureC = resp.Hourly.Temperature[i]
		}
		if i < len(resp.Hourly.Precipitation) {
			f.PrecipitationMM = resp.Hourly.Precipitation[i]
		}
		if i < len(resp.Hourly.WindSpeed) {
			f.WindSpeedKPH = resp.Hourly.WindSpeed[i]
		}
		if i < len(resp.Hourly.CloudCover) {
			f.CloudCoverPct = resp.Hourly.CloudCover[i]
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, nil
}

// SunriseSunset returns sun times for one date (today when empty).
func (c *OpenMeteoClient) SunriseSunset(ctx context.Context, lat, lon float64, date string) (tools.SunTimes, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("daily", "sunrise,sunset")
	params.Set("start_date", date)
	params.Set("end_date", date)
	params.Set("timezone", "auto")

	var resp openMeteoResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return tools.SunTimes{}, err
	}
	if len(resp.Daily.Sunrise) == 0 || len(resp.Daily.Sunset) == 0 {
		return tools.SunTimes{}, fmt.Errorf("no sun times returned for %s", date)
	}

	return tools.SunTimes{
		Date:    date,
		Sunrise: resp.Daily.Sunrise[0],
		Sunset:  resp.Daily.Sunset[0],
	}, nil
}

func (c *OpenMeteoClient) get(ctx context.Context, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build forecast request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("forecast request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Open-Meteo returned non-200")
		return fmt.Errorf("forecast request failed with status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode forecast response: %w", err)
	}
	return nil
}
