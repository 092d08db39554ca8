package plugin

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/hupe1980/agentplay/core"
	"github.com/hupe1980/agentplay/tool"
)

// Weather tool names.
const (
	ToolCurrentWeather = "get_current_weather"
	ToolForecast       = "get_forecast"
	ToolWeatherAlert   = "get_weather_alert"
)

// MaxForecastDays bounds get_forecast.
const MaxForecastDays = 10

var conditions = []string{"Sunny", "Cloudy", "Rainy", "Snowy", "Windy", "Foggy", "Stormy"}

type tempRange struct{ lo, hi int }

var temperatures = map[string]tempRange{
	"New York": {50, 85},
	"London":   {45, 75},
	"Tokyo":    {55, 90},
	"Sydney":   {60, 95},
	"Paris":    {48, 80},
}

var defaultTemperature = tempRange{40, 100}

var alerts = map[string]string{
	"New York": "Heat advisory in effect",
	"Tokyo":    "Typhoon warning for coastal areas",
	"Paris":    "Air quality warning",
}

// WeatherOptions configures the simulated weather source.
type WeatherOptions struct {
	// Rand supplies randomness. Seed it for reproducible readings.
	Rand *rand.Rand
}

// Weather simulates a weather service for a few well-known cities.
type Weather struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeather creates a weather source.
func NewWeather(optFns ...func(o *WeatherOptions)) *Weather {
	opts := WeatherOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>1))
	}

	return &Weather{rng: opts.Rand}
}

// NewSeededWeather creates a deterministic weather source.
func NewSeededWeather(seed uint64) *Weather {
	return NewWeather(func(o *WeatherOptions) { o.Rand = rand.New(rand.NewPCG(seed, seed)) })
}

func (w *Weather) between(lo, hi int) int {
	return lo + w.rng.IntN(hi-lo+1)
}

func (w *Weather) reading(location string) map[string]any {
	r, ok := temperatures[location]
	if !ok {
		r = defaultTemperature
	}

	return map[string]any{
		"temperature": w.between(r.lo, r.hi),
		"condition":   conditions[w.rng.IntN(len(conditions))],
		"humidity":    w.between(30, 95),
		"wind_speed":  w.between(0, 30),
	}
}

// Current returns the current weather for location.
func (w *Weather) Current(location string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.reading(location)
	r["location"] = location

	return r
}

// Forecast returns days daily readings for location.
func (w *Weather) Forecast(location string, days int) []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]map[string]any, 0, days)
	for i := range days {
		r := w.reading(location)
		r["day"] = i + 1
		out = append(out, r)
	}

	return out
}

// Alert returns the active alert for location, if any.
func (w *Weather) Alert(location string) map[string]any {
	msg, ok := alerts[location]
	if !ok {
		msg = "No active alerts"
	}

	return map[string]any{
		"location":      location,
		"has_alert":     ok,
		"alert_message": msg,
	}
}

type currentWeatherArgs struct {
	Location string `json:"location" description:"The city name to get weather for"`
}

type forecastArgs struct {
	Location string `json:"location" description:"The city name to get forecast for"`
	Days     int    `json:"days,omitempty" description:"Number of days for the forecast"`
}

type alertArgs struct {
	Location string `json:"location" description:"The city name to check for weather alerts"`
}

// Tools exposes the weather source as tools.
func (w *Weather) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewFunctionToolFromStruct(ToolCurrentWeather, "Gets the current weather for a specified location.",
			currentWeatherArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return w.Current(stringArg(args, "location", "")), nil
			}),
		tool.NewFunctionToolFromStruct(ToolForecast, "Gets a weather forecast for a specified number of days.",
			forecastArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				days, ok := intArg(args, "days", 3)
				if !ok || days < 1 || days > MaxForecastDays {
					return nil, tool.NewToolError(ToolForecast, "days must be an integer between 1 and 10", tool.CodeValidation)
				}

				return w.Forecast(stringArg(args, "location", ""), days), nil
			}),
		tool.NewFunctionToolFromStruct(ToolWeatherAlert, "Gets any active weather alerts for a location.",
			alertArgs{},
			func(_ *core.ToolContext, args map[string]any) (any, error) {
				return w.Alert(stringArg(args, "location", "")), nil
			}),
	}
}
