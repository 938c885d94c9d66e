package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cricket-sim/models"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lords = models.Venue{Name: "Lord's", City: "London", Latitude: 51.5294, Longitude: -0.1727, RoofType: "open"}

func newTestService(t *testing.T, url string, opts ...Option) *Service {
	t.Helper()
	logger, _ := test.NewNullLogger()
	opts = append([]Option{WithBaseURL(url), WithDefaultRainProbability(15)}, opts...)
	return NewService("test_key", logrus.NewEntry(logger), opts...)
}

func forecastServer(t *testing.T, calls *atomic.Int32, entries ...forecastEntry) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "test_key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_ = json.NewEncoder(w).Encode(OpenWeatherResponse{List: entries})
	}))
	t.Cleanup(server.Close)
	return server
}

func entry(at time.Time, pop float64, conditions string) forecastEntry {
	e := forecastEntry{Dt: at.Unix(), Pop: pop}
	e.Main.Temp = 18
	e.Main.Humidity = 70
	e.Weather = append(e.Weather, struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	}{Main: conditions})
	return e
}

func TestRainProbabilityPicksClosestSlot(t *testing.T) {
	start := time.Date(2026, 6, 12, 14, 0, 0, 0, time.UTC)
	var calls atomic.Int32
	server := forecastServer(t, &calls,
		entry(start.Add(-6*time.Hour), 0.1, "Clear"),
		entry(start.Add(time.Hour), 0.64, "Rain"),
		entry(start.Add(4*time.Hour), 0.9, "Rain"),
	)
	s := newTestService(t, server.URL)

	p, err := s.RainProbability(context.Background(), lords, start)
	require.NoError(t, err)
	assert.InDelta(t, 64, p, 1e-9)

	f, err := s.ForecastFor(context.Background(), lords, start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "Rain", f.Conditions)
	assert.False(t, f.Default)
	assert.Equal(t, int32(1), calls.Load(), "second lookup in the same hour is cached")
	assert.Equal(t, 1, s.CacheEntries())
}

func TestRainProbabilityIndoor(t *testing.T) {
	var calls atomic.Int32
	server := forecastServer(t, &calls, entry(time.Now(), 1, "Rain"))
	s := newTestService(t, server.URL)

	for _, roof := range []string{"dome", "indoor", "fixed_roof", "closed"} {
		t.Run(roof, func(t *testing.T) {
			v := lords
			v.RoofType = roof
			p, err := s.RainProbability(context.Background(), v, time.Now())
			require.NoError(t, err)
			assert.Zero(t, p)
		})
	}
	assert.Zero(t, calls.Load())
}

func TestForecastFallsBackToDefault(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"cod":500}`, http.StatusInternalServerError)
	}))
	defer failing.Close()

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"list":[]}`))
	}))
	defer empty.Close()

	tests := []struct {
		name  string
		url   string
		venue models.Venue
	}{
		{"server error", failing.URL, lords},
		{"no forecast slots", empty.URL, lords},
		{"no coordinates", failing.URL, models.Venue{Name: "Village Green"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, tt.url)
			f, err := s.ForecastFor(context.Background(), tt.venue, time.Now())
			require.NoError(t, err)
			assert.True(t, f.Default)
			assert.Equal(t, 15.0, f.RainProbability)
			assert.Zero(t, s.CacheEntries(), "defaults are not cached")
		})
	}
}

func TestForecastWithoutAPIKey(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := NewService("", logrus.NewEntry(logger), WithDefaultRainProbability(250))

	p, err := s.RainProbability(context.Background(), lords, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100.0, p, "default is clamped to a percentage")
}

func TestForecastCancelled(t *testing.T) {
	s := newTestService(t, "http://127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.RainProbability(ctx, lords, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindClosestForecast(t *testing.T) {
	start := time.Date(2026, 1, 3, 9, 0, 0, 0, time.UTC)
	wet := entry(start, 1.4, "Thunderstorm")
	wet.Rain = &struct {
		ThreeH float64 `json:"3h"`
	}{ThreeH: 12.5}

	f, err := findClosestForecast(OpenWeatherResponse{List: []forecastEntry{wet}}, start)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.RainProbability)
	assert.Equal(t, 12.5, f.RainMM)
	assert.Equal(t, start, f.At)

	_, err = findClosestForecast(OpenWeatherResponse{}, start)
	assert.Error(t, err)
}

func TestCleanExpiredCache(t *testing.T) {
	s := newTestService(t, "")
	s.cacheForecast("fresh", Forecast{RainProbability: 10})
	s.cache.data["stale"] = &cachedForecast{expiresAt: time.Now().Add(-time.Minute)}

	_, ok := s.getCachedForecast("stale")
	assert.False(t, ok)

	assert.Equal(t, 1, s.CleanExpiredCache())
	_, ok = s.getCachedForecast("fresh")
	assert.True(t, ok)
}

func TestCacheKeyRoundsToHour(t *testing.T) {
	s := newTestService(t, "")
	a := time.Date(2026, 6, 12, 14, 10, 0, 0, time.UTC)
	b := time.Date(2026, 6, 12, 13, 50, 0, 0, time.UTC)
	c := time.Date(2026, 6, 12, 15, 40, 0, 0, time.UTC)

	assert.Equal(t, s.getCacheKey(lords, a), s.getCacheKey(lords, b))
	assert.NotEqual(t, s.getCacheKey(lords, a), s.getCacheKey(lords, c))
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr string
	}{
		{"valid", http.StatusOK, ""},
		{"unauthorised", http.StatusUnauthorized, "invalid API key"},
		{"server error", http.StatusBadGateway, "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "1", r.URL.Query().Get("cnt"))
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := newTestService(t, server.URL).ValidateAPIKey(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}

	logger, _ := test.NewNullLogger()
	assert.Error(t, NewService("", logrus.NewEntry(logger)).ValidateAPIKey(context.Background()))
}
