package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync"
	"time"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
)

const (
	// OpenWeatherMap 5 day / 3 hour forecast
	openWeatherAPIURL = "https://api.openweathermap.org/data/2.5/forecast"

	cacheDuration   = 30 * time.Minute
	cleanupInterval = 15 * time.Minute
	requestTimeout  = 10 * time.Second
)

// Forecast is the slice of a venue forecast that matters for play
type Forecast struct {
	At              time.Time `json:"at"`
	RainProbability float64   `json:"rain_probability"` // percent, 0-100
	RainMM          float64   `json:"rain_mm"`          // expected over three hours
	Temperature     float64   `json:"temperature"`      // celsius
	Humidity        int       `json:"humidity"`
	WindSpeed       float64   `json:"wind_speed"` // metres per second
	Conditions      string    `json:"conditions"`
	Default         bool      `json:"default,omitempty"`
}

// Service fetches venue forecasts and caches them
type Service struct {
	apiKey      string
	baseURL     string
	defaultRain float64
	httpClient  *http.Client
	cache       *forecastCache
	log         *logrus.Entry
}

// forecastCache stores forecasts with expiration
type forecastCache struct {
	data map[string]*cachedForecast
	mu   sync.RWMutex
}

type cachedForecast struct {
	forecast  Forecast
	expiresAt time.Time
}

type forecastEntry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Pop  float64 `json:"pop"` // probability of precipitation, 0-1
	Rain *struct {
		ThreeH float64 `json:"3h"`
	} `json:"rain,omitempty"`
}

// OpenWeatherResponse represents the API response
type OpenWeatherResponse struct {
	List []forecastEntry `json:"list"`
	City struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"city"`
}

// Option customises a Service
type Option func(*Service)

// WithBaseURL points the service at another forecast endpoint
func WithBaseURL(u string) Option {
	return func(s *Service) { s.baseURL = u }
}

// WithDefaultRainProbability sets the percentage used when no forecast is available
func WithDefaultRainProbability(p float64) Option {
	return func(s *Service) { s.defaultRain = math.Max(0, math.Min(100, p)) }
}

// NewService creates a new weather service
func NewService(apiKey string, log *logrus.Entry, opts ...Option) *Service {
	s := &Service{
		apiKey:  apiKey,
		baseURL: openWeatherAPIURL,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		cache: &forecastCache{
			data: make(map[string]*cachedForecast),
		},
		log: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RainProbability returns the chance of a rain interruption, in percent, for
// a match at the venue starting at start. Indoor grounds never lose overs.
func (s *Service) RainProbability(ctx context.Context, venue models.Venue, start time.Time) (float64, error) {
	if venue.Indoor() {
		return 0, nil
	}
	f, err := s.ForecastFor(ctx, venue, start)
	if err != nil {
		return 0, err
	}
	return f.RainProbability, nil
}

// ForecastFor returns the forecast closest to start. Lookup failures fall back
// to a default forecast so match creation is never blocked on the weather.
func (s *Service) ForecastFor(ctx context.Context, venue models.Venue, start time.Time) (Forecast, error) {
	if err := ctx.Err(); err != nil {
		return Forecast{}, err
	}

	if venue.Indoor() {
		s.log.WithField("venue", venue.Name).Debug("Indoor venue, no rain")
		return Forecast{At: start, Conditions: "indoor"}, nil
	}

	cacheKey := s.getCacheKey(venue, start)
	if cached, ok := s.getCachedForecast(cacheKey); ok {
		s.log.WithField("venue", venue.Name).Debug("Using cached forecast")
		return cached, nil
	}

	if venue.Latitude == 0 && venue.Longitude == 0 {
		s.log.WithField("venue", venue.Name).Warn("No coordinates for venue, using default forecast")
		return s.defaultForecast(start), nil
	}

	f, err := s.fetchForecast(ctx, venue, start)
	if err != nil {
		if ctx.Err() != nil {
			return Forecast{}, ctx.Err()
		}
		s.log.WithError(err).WithField("venue", venue.Name).Warn("Failed to fetch forecast, using default")
		return s.defaultForecast(start), nil
	}

	s.cacheForecast(cacheKey, f)
	return f, nil
}

func (s *Service) defaultForecast(start time.Time) Forecast {
	return Forecast{
		At:              start,
		RainProbability: s.defaultRain,
		Temperature:     22,
		Humidity:        60,
		WindSpeed:       4,
		Conditions:      "unknown",
		Default:         true,
	}
}

// fetchForecast calls OpenWeatherMap
func (s *Service) fetchForecast(ctx context.Context, venue models.Venue, start time.Time) (Forecast, error) {
	if s.apiKey == "" {
		return Forecast{}, fmt.Errorf("weather API key not configured")
	}

	params := url.Values{}
	params.Add("lat", fmt.Sprintf("%.4f", venue.Latitude))
	params.Add("lon", fmt.Sprintf("%.4f", venue.Longitude))
	params.Add("appid", s.apiKey)
	params.Add("units", "metric")
	params.Add("cnt", "40") // 5 days of 3-hour forecasts

	apiURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Forecast{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Forecast{}, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Forecast{}, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var weatherResp OpenWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&weatherResp); err != nil {
		return Forecast{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return findClosestForecast(weatherResp, start)
}

// findClosestForecast picks the three-hour slot nearest the start time
func findClosestForecast(resp OpenWeatherResponse, start time.Time) (Forecast, error) {
	if len(resp.List) == 0 {
		return Forecast{}, fmt.Errorf("no forecast data available")
	}

	closest := &resp.List[0]
	minDiff := time.Duration(math.MaxInt64)
	for i := range resp.List {
		entry := &resp.List[i]
		diff := start.Sub(time.Unix(entry.Dt, 0))
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = entry
		}
	}

	f := Forecast{
		At:              time.Unix(closest.Dt, 0).UTC(),
		RainProbability: math.Round(math.Max(0, math.Min(1, closest.Pop))*1000) / 10,
		Temperature:     closest.Main.Temp,
		Humidity:        closest.Main.Humidity,
		WindSpeed:       closest.Wind.Speed,
	}
	if closest.Rain != nil {
		f.RainMM = closest.Rain.ThreeH
	}
	if len(closest.Weather) > 0 {
		f.Conditions = closest.Weather[0].Main
	}
	return f, nil
}

// getCacheKey rounds the start to the hour so nearby requests share a slot
func (s *Service) getCacheKey(venue models.Venue, start time.Time) string {
	rounded := start.UTC().Round(time.Hour)
	return fmt.Sprintf("%s_%.2f_%.2f_%s", venue.Name, venue.Latitude, venue.Longitude, rounded.Format("2006-01-02T15"))
}

func (s *Service) getCachedForecast(key string) (Forecast, bool) {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()

	if cached, ok := s.cache.data[key]; ok && time.Now().Before(cached.expiresAt) {
		return cached.forecast, true
	}
	return Forecast{}, false
}

func (s *Service) cacheForecast(key string, f Forecast) {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	s.cache.data[key] = &cachedForecast{
		forecast:  f,
		expiresAt: time.Now().Add(cacheDuration),
	}
}

// CleanExpiredCache removes expired entries and returns how many remain
func (s *Service) CleanExpiredCache() int {
	s.cache.mu.Lock()
	defer s.cache.mu.Unlock()

	now := time.Now()
	for key, cached := range s.cache.data {
		if now.After(cached.expiresAt) {
			delete(s.cache.data, key)
		}
	}
	return len(s.cache.data)
}

// StartCacheCleanup cleans the cache periodically until ctx is done
func (s *Service) StartCacheCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				remaining := s.CleanExpiredCache()
				s.log.WithField("entries", remaining).Debug("Weather cache cleaned")
			}
		}
	}()
}

// CacheEntries returns the number of cached forecasts
func (s *Service) CacheEntries() int {
	s.cache.mu.RLock()
	defer s.cache.mu.RUnlock()
	return len(s.cache.data)
}

// ValidateAPIKey checks the key with a one-slot request
func (s *Service) ValidateAPIKey(ctx context.Context) error {
	if s.apiKey == "" {
		return fmt.Errorf("API key is empty")
	}

	// Lord's
	params := url.Values{}
	params.Add("lat", "51.5294")
	params.Add("lon", "-0.1727")
	params.Add("appid", s.apiKey)
	params.Add("cnt", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", s.baseURL, params.Encode()), nil)
	if err != nil {
		return fmt.Errorf("failed to create validation request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API key validation request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("invalid API key")
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("API key validation failed with status %d: %s", resp.StatusCode, string(body))
	}

	s.log.Info("Weather API key validated")
	return nil
}
