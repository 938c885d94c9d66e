// Package api serves live matches over HTTP and streams them over WebSocket.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cricket-sim/models"
	"cricket-sim/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Config tunes the HTTP surface
type Config struct {
	Port              string
	CORSOrigins       []string
	RequestTimeout    time.Duration
	SimulationTimeout time.Duration // simulate and projection calls
	LiveFullUpdates   bool          // include the whole match in live events
}

// WeatherStats is the part of the weather service the metrics read
type WeatherStats interface {
	CacheEntries() int
}

// Server is the HTTP front of the match service
type Server struct {
	svc        *service.MatchService
	router     *mux.Router
	httpServer *http.Server
	hub        *Hub
	metrics    *Metrics
	config     Config
	log        *logrus.Entry
	db         *pgxpool.Pool
	weather    WeatherStats

	unsubscribe func()
}

// Option adds an optional collaborator to the server
type Option func(*Server)

// WithDatabase reports pool statistics on /metrics
func WithDatabase(db *pgxpool.Pool) Option {
	return func(s *Server) { s.db = db }
}

// WithWeather reports the forecast cache size on /metrics
func WithWeather(w WeatherStats) Option {
	return func(s *Server) { s.weather = w }
}

// NewServer builds the router and joins the live feed
func NewServer(svc *service.MatchService, config Config, log *logrus.Entry, opts ...Option) *Server {
	if config.Port == "" {
		config.Port = "8080"
	}
	log = log.WithField("component", "api")

	s := &Server{
		svc:     svc,
		router:  mux.NewRouter(),
		hub:     NewHub(config.CORSOrigins, config.LiveFullUpdates, log),
		metrics: NewMetrics(),
		config:  config,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.unsubscribe = svc.Feed().Subscribe("", s.hub.Broadcast)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.healthHandler).Methods("GET")
	s.router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/strategies", s.strategiesHandler).Methods("GET")

	api.HandleFunc("/matches", s.createMatchHandler).Methods("POST")
	api.HandleFunc("/matches", s.listMatchesHandler).Methods("GET")
	api.HandleFunc("/matches/{id}", s.getMatchHandler).Methods("GET")
	api.HandleFunc("/matches/{id}", s.deleteMatchHandler).Methods("DELETE")

	api.HandleFunc("/matches/{id}/balls", s.ballHandler).Methods("POST")
	api.HandleFunc("/matches/{id}/undo", s.undoHandler).Methods("POST")
	api.HandleFunc("/matches/{id}/bowler", s.bowlerHandler).Methods("PUT")
	api.HandleFunc("/matches/{id}/batter", s.batterHandler).Methods("PUT")
	api.HandleFunc("/matches/{id}/field", s.fieldHandler).Methods("PUT")
	api.HandleFunc("/matches/{id}/impact", s.impactHandler).Methods("POST")

	api.HandleFunc("/matches/{id}/situation", s.situationHandler).Methods("GET")
	api.HandleFunc("/matches/{id}/context", s.contextHandler).Methods("GET")
	api.HandleFunc("/matches/{id}/simulate", s.simulateHandler).Methods("POST")
	api.HandleFunc("/matches/{id}/projection", s.projectionHandler).Methods("POST")
	api.HandleFunc("/matches/{id}/live", s.liveHandler).Methods("GET")

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
}

// Handler is the router with CORS, proxy headers and compression applied
func (s *Server) Handler() http.Handler {
	origins := s.config.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
	return handlers.ProxyHeaders(c.Handler(handlers.CompressHandler(s.router)))
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	s.log.WithField("port", s.config.Port).Info("Starting cricket simulator API")
	return s.httpServer.ListenAndServe()
}

// writeTimeout leaves room for the slowest handler
func (s *Server) writeTimeout() time.Duration {
	return max(15*time.Second, s.config.SimulationTimeout+5*time.Second)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down API")
	s.unsubscribe()
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		duration := time.Since(start)
		s.metrics.IncrementRequests()
		s.metrics.AddResponseTime(duration)
		if lrw.statusCode >= http.StatusInternalServerError {
			s.metrics.IncrementErrors()
		}

		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.RequestURI,
			"status":   lrw.statusCode,
			"duration": duration,
		}).Info("Request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.WithField("panic", err).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

// Hijack lets the live feed take over the connection
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Handlers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			health["status"] = "degraded"
			health["database"] = err.Error()
		} else {
			health["database"] = "ok"
		}
	}
	s.writeJSON(w, http.StatusOK, health)
}

func (s *Server) strategiesHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"strategies": s.svc.Strategies(),
		"cache":      s.svc.CacheStats(),
	})
}

func (s *Server) createMatchHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	m, err := s.svc.Create(ctx, req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/matches/"+m.ID)
	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) listMatchesHandler(w http.ResponseWriter, r *http.Request) {
	ids, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"matches": ids, "total": len(ids)})
}

func (s *Server) getMatchHandler(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Get(r.Context(), matchID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) deleteMatchHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Delete(r.Context(), matchID(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respond writes the snapshot returned by a state change
func (s *Server) respond(w http.ResponseWriter, m *models.Match, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) ballHandler(w http.ResponseWriter, r *http.Request) {
	var d models.BallDetails
	if err := decodeJSON(w, r, &d); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.Ball(r.Context(), matchID(r), d)
	s.respond(w, m, err)
}

func (s *Server) undoHandler(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Undo(r.Context(), matchID(r))
	s.respond(w, m, err)
}

type playerRequest struct {
	PlayerID int `json:"player_id"`
}

func (s *Server) bowlerHandler(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.ChangeBowler(r.Context(), matchID(r), req.PlayerID)
	s.respond(w, m, err)
}

func (s *Server) batterHandler(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.SelectBatter(r.Context(), matchID(r), req.PlayerID)
	s.respond(w, m, err)
}

func (s *Server) fieldHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Placements []models.FieldPlacement `json:"placements"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.UpdateField(r.Context(), matchID(r), req.Placements)
	s.respond(w, m, err)
}

func (s *Server) impactHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TeamID string `json:"team_id"`
		OutID  int    `json:"out_id"`
		InID   int    `json:"in_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.svc.ImpactPlayer(r.Context(), matchID(r), req.TeamID, req.OutID, req.InID)
	s.respond(w, m, err)
}

func (s *Server) situationHandler(w http.ResponseWriter, r *http.Request) {
	sit, err := s.svc.Situation(r.Context(), matchID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sit)
}

func (s *Server) contextHandler(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Context(r.Context(), matchID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, c)
}

func (s *Server) simulateHandler(w http.ResponseWriter, r *http.Request) {
	var req service.SimulateRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	ctx, cancel := contextWithTimeout(r.Context(), s.config.SimulationTimeout)
	defer cancel()

	report, err := s.svc.SimulateOver(ctx, matchID(r), req)
	if report != nil {
		s.metrics.RecordOver(report.Simulation.Strategy)
	}
	if err != nil {
		if report != nil {
			s.log.WithError(err).WithField("match_id", matchID(r)).Warn("Over stopped early")
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) projectionHandler(w http.ResponseWriter, r *http.Request) {
	runs := parseIntParam(r.URL.Query().Get("runs"), 0)
	if runs < 0 || runs > 100000 {
		s.writeError(w, fmt.Errorf("%w: runs must be between 0 and 100000", errBadRequest))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), s.config.SimulationTimeout)
	defer cancel()

	p, err := s.svc.Project(ctx, matchID(r), runs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) liveHandler(w http.ResponseWriter, r *http.Request) {
	id := matchID(r)
	if _, err := s.svc.Get(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.hub.Serve(w, r, id)
}
