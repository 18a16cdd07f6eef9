package tools

import "context"

// Place is a geocoding result.
type Place struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Country   string  `json:"country,omitempty"`
	Region    string  `json:"region,omitempty"`
	Elevation float64 `json:"elevation,omitempty"`
}

// DailyForecast is one day of weather.
type DailyForecast struct {
	Date             string  `json:"date"`
	TemperatureMinC  float64 `json:"temperature_min_c"`
	TemperatureMaxC  float64 `json:"temperature_max_c"`
	PrecipitationMM  float64 `json:"precipitation_mm"`
	WindSpeedKPH     float64 `json:"wind_speed_kph"`
	WeatherCode      int     `json:"weather_code"`
	WeatherCondition string  `json:"weather_condition,omitempty"`
}

// HourlyForecast is one hour of weather.
type HourlyForecast struct {
	Time            string  `json:"time"`
	TemperatureC    float64 `json:"temperature_c"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	WindSpeedKPH    float64 `json:"wind_speed_kph"`
	CloudCoverPct   int     `json:"cloud_cover_pct"`
}

// SunTimes holds sunrise and sunset for a day.
type SunTimes struct {
	Date    string `json:"date"`
	Sunrise string `json:"sunrise"`
	Sunset  string `json:"sunset"`
}

// Trail is a hiking route.
type Trail struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	LengthKM    float64 `json:"length_km"`
	AscentM     float64 `json:"ascent_m"`
	Difficulty  string  `json:"difficulty,omitempty"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// WebResult is a web search hit.
type WebResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// GeocodingService resolves place names and coordinates.
type GeocodingService interface {
	Geocode(ctx context.Context, query string, limit int) ([]Place, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error)
}

// WeatherService provides forecasts and sun times.
type WeatherService interface {
	Daily(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error)
	Hourly(ctx context.Context, lat, lon float64, hours int) ([]HourlyForecast, error)
	SunriseSunset(ctx context.Context, lat, lon float64, date string) (SunTimes, error)
}

// TrailService finds hiking routes.
type TrailService interface {
	Search(ctx context.Context, query string, lat, lon, radiusKM float64) ([]Trail, error)
	Details(ctx context.Context, trailID string) (Trail, error)
}

// WebSearchService runs web searches.
type WebSearchService interface {
	Search(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}

// Services bundles the external collaborators backing the builtin tools.
type Services struct {
	Geo     GeocodingService
	Weather WeatherService
	Trails  TrailService
	Web     WebSearchService
}
