package tools

import (
	"context"
	"fmt"

	"github.com/harun/mate/pkg/toolexec"
)

// RegisterBuiltins registers the builtin tool set against the given services.
// Tools whose service is nil are skipped, so a deployment can run without
// e.g. a web search backend.
func RegisterBuiltins(r *toolexec.Registry, svc Services) error {
	type binding struct {
		def     toolexec.ToolDefinition
		enabled bool
	}

	bindings := []binding{
		{geocodeTool(svc.Geo), svc.Geo != nil},
		{reverseGeocodeTool(svc.Geo), svc.Geo != nil},
		{dailyForecastTool(svc.Weather), svc.Weather != nil},
		{hourlyForecastTool(svc.Weather), svc.Weather != nil},
		{sunriseSunsetTool(svc.Weather), svc.Weather != nil},
		{searchTrailsTool(svc.Trails), svc.Trails != nil},
		{trailDetailsTool(svc.Trails), svc.Trails != nil},
		{searchWebTool(svc.Web), svc.Web != nil},
	}

	for _, b := range bindings {
		if !b.enabled {
			continue
		}
		if err := r.Register(b.def); err != nil {
			return fmt.Errorf("failed to register %s: %w", b.def.Name, err)
		}
	}

	return nil
}

func geocodeTool(geo GeocodingService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "geocode",
		Description: "Resolve a place name to geographic coordinates. Returns candidate places with latitude and longitude.",
		Parameters: []toolexec.ToolParameter{
			{Name: "query", Type: "string", Description: "Place name to resolve, e.g. 'Mount Rainier'", Required: true},
			{Name: "limit", Type: "integer", Description: "Maximum number of candidates to return", Default: 3},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			query := stringParam(params, "query")
			limit := intParam(params, "limit", 3)
			places, err := geo.Geocode(ctx, query, limit)
			if err != nil {
				return nil, err
			}
			if len(places) == 0 {
				return nil, fmt.Errorf("no places found for %q", query)
			}
			return map[string]interface{}{"places": places}, nil
		},
	}
}

func reverseGeocodeTool(geo GeocodingService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "reverse_geocode",
		Description: "Resolve geographic coordinates to the nearest named place.",
		Parameters: []toolexec.ToolParameter{
			{Name: "latitude", Type: "number", Description: "Latitude in decimal degrees", Required: true},
			{Name: "longitude", Type: "number", Description: "Longitude in decimal degrees", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			place, err := geo.ReverseGeocode(ctx, floatParam(params, "latitude", 0), floatParam(params, "longitude", 0))
			if err != nil {
				return nil, err
			}
			return place, nil
		},
	}
}

func dailyForecastTool(weather WeatherService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "get_daily_forecast",
		Description: "Get the daily weather forecast for a location. Requires coordinates; call geocode first for place names.",
		Parameters: []toolexec.ToolParameter{
			{Name: "latitude", Type: "number", Description: "Latitude in decimal degrees", Required: true},
			{Name: "longitude", Type: "number", Description: "Longitude in decimal degrees", Required: true},
			{Name: "days", Type: "integer", Description: "Number of forecast days (1-16)", Default: 7},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			days := intParam(params, "days", 7)
			if days < 1 || days > 16 {
				return nil, fmt.Errorf("days must be between 1 and 16, got %d", days)
			}
			forecast, err := weather.Daily(ctx, floatParam(params, "latitude", 0), floatParam(params, "longitude", 0), days)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"daily": forecast}, nil
		},
	}
}

func hourlyForecastTool(weather WeatherService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "get_hourly_forecast",
		Description: "Get the hourly weather forecast for a location. Requires coordinates; call geocode first for place names.",
		Parameters: []toolexec.ToolParameter{
			{Name: "latitude", Type: "number", Description: "Latitude in decimal degrees", Required: true},
			{Name: "longitude", Type: "number", Description: "Longitude in decimal degrees", Required: true},
			{Name: "hours", Type: "integer", Description: "Number of forecast hours (1-168)", Default: 24},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			hours := intParam(params, "hours", 24)
			if hours < 1 || hours > 168 {
				return nil, fmt.Errorf("hours must be between 1 and 168, got %d", hours)
			}
			forecast, err := weather.Hourly(ctx, floatParam(params, "latitude", 0), floatParam(params, "longitude", 0), hours)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"hourly": forecast}, nil
		},
	}
}

func sunriseSunsetTool(weather WeatherService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "get_sunrise_sunset_times",
		Description: "Get sunrise and sunset times for a location and date.",
		Parameters: []toolexec.ToolParameter{
			{Name: "latitude", Type: "number", Description: "Latitude in decimal degrees", Required: true},
			{Name: "longitude", Type: "number", Description: "Longitude in decimal degrees", Required: true},
			{Name: "date", Type: "string", Description: "Date in YYYY-MM-DD format, defaults to today"},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			times, err := weather.SunriseSunset(ctx,
				floatParam(params, "latitude", 0),
				floatParam(params, "longitude", 0),
				stringParam(params, "date"),
			)
			if err != nil {
				return nil, err
			}
			return times, nil
		},
	}
}

func searchTrailsTool(trails TrailService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "search_trails",
		Description: "Search for hiking trails near a location or matching a name.",
		Parameters: []toolexec.ToolParameter{
			{Name: "query", Type: "string", Description: "Trail name or keywords", Required: true},
			{Name: "latitude", Type: "number", Description: "Center latitude for proximity search"},
			{Name: "longitude", Type: "number", Description: "Center longitude for proximity search"},
			{Name: "radius_km", Type: "number", Description: "Search radius in kilometers", Default: 25.0},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			results, err := trails.Search(ctx,
				stringParam(params, "query"),
				floatParam(params, "latitude", 0),
				floatParam(params, "longitude", 0),
				floatParam(params, "radius_km", 25),
			)
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"trails": results}, nil
		},
	}
}

func trailDetailsTool(trails TrailService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "get_trail_details",
		Description: "Get full details for a trail by its ID, as returned by search_trails.",
		Parameters: []toolexec.ToolParameter{
			{Name: "trail_id", Type: "string", Description: "Trail identifier", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			trail, err := trails.Details(ctx, stringParam(params, "trail_id"))
			if err != nil {
				return nil, err
			}
			return trail, nil
		},
	}
}

func searchWebTool(web WebSearchService) toolexec.ToolDefinition {
	return toolexec.ToolDefinition{
		Name:        "search_web",
		Description: "Search the web for current information.",
		Parameters: []toolexec.ToolParameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
			{Name: "max_results", Type: "integer", Description: "Maximum number of results", Default: 5},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			results, err := web.Search(ctx, stringParam(params, "query"), intParam(params, "max_results", 5))
			if err != nil {
				return nil, err
			}
			return map[string]interface{}{"results": results}, nil
		},
	}
}

func stringParam(params map[string]interface{}, name string) string {
	if v, ok := params[name].(string); ok {
		return v
	}
	return ""
}

func intParam(params map[string]interface{}, name string, def int) int {
	switch v := params[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

func floatParam(params map[string]interface{}, name string, def float64) float64 {
	switch v := params[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}
