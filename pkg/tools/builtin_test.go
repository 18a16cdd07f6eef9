package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/mate/pkg/toolexec"
)

type fakeGeo struct {
	places []Place
	err    error
}

func (f *fakeGeo) Geocode(ctx context.Context, query string, limit int) ([]Place, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.places) {
		return f.places[:limit], nil
	}
	return f.places, nil
}

func (f *fakeGeo) ReverseGeocode(ctx context.Context, lat, lon float64) (Place, error) {
	if f.err != nil {
		return Place{}, f.err
	}
	if len(f.places) == 0 {
		return Place{}, fmt.Errorf("no place at %f,%f", lat, lon)
	}
	return f.places[0], nil
}

type fakeWeather struct {
	daily  []DailyForecast
	hourly []HourlyForecast
	sun    *SunTimes
}

func (f *fakeWeather) Daily(ctx context.Context, lat, lon float64, days int) ([]DailyForecast, error) {
	return f.daily, nil
}

func (f *fakeWeather) Hourly(ctx context.Context, lat, lon float64, hours int) ([]HourlyForecast, error) {
	return f.hourly, nil
}

func (f *fakeWeather) SunriseSunset(ctx context.Context, lat, lon float64, date string) (SunTimes, error) {
	if f.sun == nil {
		return SunTimes{}, nil
	}
	return *f.sun, nil
}

type fakeTrails struct {
	trails []Trail
}

func (f *fakeTrails) Search(ctx context.Context, query string, lat, lon, radiusKM float64) ([]Trail, error) {
	return f.trails, nil
}

func (f *fakeTrails) Details(ctx context.Context, trailID string) (Trail, error) {
	for i := range f.trails {
		if f.trails[i].ID == trailID {
			return f.trails[i], nil
		}
	}
	return Trail{}, fmt.Errorf("trail %s not found", trailID)
}

type fakeWeb struct {
	results []WebResult
}

func (f *fakeWeb) Search(ctx context.Context, query string, maxResults int) ([]WebResult, error) {
	return f.results, nil
}

func allServices() Services {
	return Services{
		Geo: &fakeGeo{places: []Place{
			{Name: "Chamonix", Latitude: 45.92, Longitude: 6.87, Country: "France"},
		}},
		Weather: &fakeWeather{
			daily: []DailyForecast{{Date: "2026-08-31", TemperatureMaxC: 22, WeatherCondition: "clear"}},
			sun:   &SunTimes{Date: "2026-08-31", Sunrise: "06:42", Sunset: "20:15"},
		},
		Trails: &fakeTrails{trails: []Trail{
			{ID: "t-1", Name: "Lac Blanc", LengthKM: 9.5, Difficulty: "moderate"},
		}},
		Web: &fakeWeb{results: []WebResult{{Title: "Trail report", URL: "https://example.com"}}},
	}
}

func TestRegisterBuiltinsRegistersAll(t *testing.T) {
	r := toolexec.NewRegistry()
	require.NoError(t, RegisterBuiltins(r, allServices()))

	expected := []string{
		"geocode", "get_daily_forecast", "get_hourly_forecast",
		"get_sunrise_sunset_times", "get_trail_details", "reverse_geocode",
		"search_trails", "search_web",
	}
	assert.Equal(t, expected, r.List())
}

func TestRegisterBuiltinsSkipsNilServices(t *testing.T) {
	r := toolexec.NewRegistry()
	svc := allServices()
	svc.Web = nil
	svc.Trails = nil
	require.NoError(t, RegisterBuiltins(r, svc))

	assert.NotContains(t, r.List(), "search_web")
	assert.NotContains(t, r.List(), "search_trails")
	assert.Contains(t, r.List(), "geocode")
}

func TestGeocodeHandler(t *testing.T) {
	r := toolexec.NewRegistry()
	require.NoError(t, RegisterBuiltins(r, allServices()))

	def := r.Get("geocode")
	require.NotNil(t, def)

	out, err := def.Handler(context.Background(), map[string]interface{}{"query": "Chamonix"})
	require.NoError(t, err)

	m, ok := out.(map[string]interface{})
	require.True(t, ok)
	places, ok := m["places"].([]Place)
	require.True(t, ok)
	assert.Equal(t, "Chamonix", places[0].Name)
}

func TestGeocodeHandlerNoResults(t *testing.T) {
	r := toolexec.NewRegistry()
	svc := allServices()
	svc.Geo = &fakeGeo{}
	require.NoError(t, RegisterBuiltins(r, svc))

	def := r.Get("geocode")
	_, err := def.Handler(context.Background(), map[string]interface{}{"query": "Nowhere"})
	assert.ErrorContains(t, err, "no places found")
}

func TestDailyForecastBounds(t *testing.T) {
	r := toolexec.NewRegistry()
	require.NoError(t, RegisterBuiltins(r, allServices()))

	def := r.Get("get_daily_forecast")

	_, err := def.Handler(context.Background(), map[string]interface{}{
		"latitude": 45.92, "longitude": 6.87, "days": float64(30),
	})
	assert.ErrorContains(t, err, "between 1 and 16")

	out, err := def.Handler(context.Background(), map[string]interface{}{
		"latitude": 45.92, "longitude": 6.87,
	})
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestTrailDetailsNotFound(t *testing.T) {
	r := toolexec.NewRegistry()
	require.NoError(t, RegisterBuiltins(r, allServices()))

	def := r.Get("get_trail_details")
	_, err := def.Handler(context.Background(), map[string]interface{}{"trail_id": "missing"})
	assert.ErrorContains(t, err, "not found")
}

func TestParamCoercion(t *testing.T) {
	params := map[string]interface{}{
		"a": float64(3),
		"b": 7,
		"c": 1.5,
		"s": "hello",
	}

	assert.Equal(t, 3, intParam(params, "a", 0))
	assert.Equal(t, 7, intParam(params, "b", 0))
	assert.Equal(t, 9, intParam(params, "missing", 9))
	assert.Equal(t, 1.5, floatParam(params, "c", 0))
	assert.Equal(t, 7.0, floatParam(params, "b", 0))
	assert.Equal(t, 2.5, floatParam(params, "missing", 2.5))
	assert.Equal(t, "hello", stringParam(params, "s"))
	assert.Equal(t, "", stringParam(params, "missing"))
}
