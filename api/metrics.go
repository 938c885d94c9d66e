package api

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"cricket-sim/simulation"
)

// Metrics tracks request counters for the process
type Metrics struct {
	mu                sync.RWMutex
	requestCount      int64
	errorCount        int64
	totalResponseTime int64
	simulatedOvers    int64
	strategyCounts    map[string]int64
	startTime         time.Time
}

type MetricsResponse struct {
	System      SystemMetrics      `json:"system"`
	Application ApplicationMetrics `json:"application"`
	Simulation  SimulationMetrics  `json:"simulation"`
	Database    *DatabaseMetrics   `json:"database,omitempty"`
	Uptime      string             `json:"uptime"`
}

type SystemMetrics struct {
	GoVersion     string  `json:"go_version"`
	NumGoroutines int     `json:"num_goroutines"`
	NumCPU        int     `json:"num_cpu"`
	MemAllocMB    float64 `json:"mem_alloc_mb"`
	MemSysMB      float64 `json:"mem_sys_mb"`
	NumGC         uint32  `json:"num_gc"`
}

type ApplicationMetrics struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ErrorRate         float64 `json:"error_rate_percent"`
	AvgResponseTime   float64 `json:"avg_response_time_ms"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	LiveConnections   int     `json:"live_connections"`
	WeatherCacheSize  int     `json:"weather_cache_size"`
}

type SimulationMetrics struct {
	Overs        int64                 `json:"overs"`
	ByStrategy   map[string]int64      `json:"by_strategy"`
	Cache        simulation.CacheStats `json:"cache"`
	CacheHitRate float64               `json:"cache_hit_rate_percent"`
	Strategies   []string              `json:"strategies"`
}

type DatabaseMetrics struct {
	MaxConns     int32 `json:"max_connections"`
	AcquireCount int64 `json:"acquire_count"`
	IdleConns    int32 `json:"idle_connections"`
	TotalConns   int32 `json:"total_connections"`
}

// NewMetrics starts the uptime clock
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now(), strategyCounts: make(map[string]int64)}
}

func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount++
}

func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount++
}

func (m *Metrics) AddResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalResponseTime += duration.Milliseconds()
}

// RecordOver counts an over by the strategy that produced it
func (m *Metrics) RecordOver(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.simulatedOvers++
	m.strategyCounts[strategy]++
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m := s.metrics
	m.mu.RLock()
	requestCount := m.requestCount
	errorCount := m.errorCount
	totalResponseTime := m.totalResponseTime
	overs := m.simulatedOvers
	byStrategy := make(map[string]int64, len(m.strategyCounts))
	for k, v := range m.strategyCounts {
		byStrategy[k] = v
	}
	startTime := m.startTime
	m.mu.RUnlock()

	uptime := time.Since(startTime)
	uptimeSeconds := uptime.Seconds()

	var errorRate, avgResponseTime, requestsPerSecond float64
	if requestCount > 0 {
		errorRate = (float64(errorCount) / float64(requestCount)) * 100
		avgResponseTime = float64(totalResponseTime) / float64(requestCount)
	}
	if uptimeSeconds > 0 {
		requestsPerSecond = float64(requestCount) / uptimeSeconds
	}

	cache := s.svc.CacheStats()
	var cacheHitRate float64
	if lookups := cache.Hits + cache.Misses; lookups > 0 {
		cacheHitRate = float64(cache.Hits) / float64(lookups) * 100
	}

	response := MetricsResponse{
		System: SystemMetrics{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			NumCPU:        runtime.NumCPU(),
			MemAllocMB:    float64(memStats.Alloc) / 1024 / 1024,
			MemSysMB:      float64(memStats.Sys) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Application: ApplicationMetrics{
			TotalRequests:     requestCount,
			TotalErrors:       errorCount,
			ErrorRate:         errorRate,
			AvgResponseTime:   avgResponseTime,
			RequestsPerSecond: requestsPerSecond,
			LiveConnections:   s.hub.Connections(),
		},
		Simulation: SimulationMetrics{
			Overs:        overs,
			ByStrategy:   byStrategy,
			Cache:        cache,
			CacheHitRate: cacheHitRate,
			Strategies:   s.svc.Strategies(),
		},
		Uptime: formatUptime(uptime),
	}
	if s.weather != nil {
		response.Application.WeatherCacheSize = s.weather.CacheEntries()
	}
	if s.db != nil {
		dbStats := s.db.Stat()
		response.Database = &DatabaseMetrics{
			MaxConns:     dbStats.MaxConns(),
			AcquireCount: dbStats.AcquireCount(),
			IdleConns:    dbStats.IdleConns(),
			TotalConns:   dbStats.TotalConns(),
		}
	}

	s.writeJSON(w, http.StatusOK, response)
}
