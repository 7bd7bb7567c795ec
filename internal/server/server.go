// Package server exposes the tracker over HTTP and accepts presence samples
// from a browser-side detector over REST or WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vburojevic/presence/internal/domain"
	"github.com/vburojevic/presence/internal/history"
	"github.com/vburojevic/presence/internal/signal"
)

// Tracker is the read side plus the confirmed clear actions.
type Tracker interface {
	Active() (domain.ActiveSession, bool)
	Sessions(by history.SortBy) []domain.CompletedSession
	Detections() []domain.DetectionEvent
	ClearSessions(ctx context.Context) error
	ClearDetections(ctx context.Context) error
}

// Options configures a Server
type Options struct {
	Addr           string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server serves the presence API
type Server struct {
	tracker  Tracker
	samples  chan<- signal.Sample
	router   *mux.Router
	server   *http.Server
	upgrader websocket.Upgrader
	logger   *zap.Logger
	origins  []string
}

// APIResponse wraps every JSON reply
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ActiveData is the payload of GET /api/v1/active
type ActiveData struct {
	Active         bool    `json:"active"`
	StartTime      int64   `json:"startTime,omitempty"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
}

// New creates a server that forwards samples to the given channel
func New(tracker Tracker, samples chan<- signal.Sample, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{
		tracker: tracker,
		samples: samples,
		router:  mux.NewRouter(),
		logger:  opts.Logger,
		origins: opts.AllowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.setupRoutes()

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      c.Handler(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/active", s.activeHandler).Methods("GET")
	api.HandleFunc("/sessions", s.sessionsHandler).Methods("GET")
	api.HandleFunc("/sessions", s.clearSessionsHandler).Methods("DELETE")
	api.HandleFunc("/detections", s.detectionsHandler).Methods("GET")
	api.HandleFunc("/detections", s.clearDetectionsHandler).Methods("DELETE")
	api.HandleFunc("/presence", s.presenceHandler).Methods("POST")

	s.router.HandleFunc("/ws/presence", s.wsHandler)
	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "ok"})
	}).Methods("GET")
}

// Handler returns the full handler chain, CORS included
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.server.Addr))
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) activeHandler(w http.ResponseWriter, r *http.Request) {
	active, ok := s.tracker.Active()
	data := ActiveData{Active: ok}
	if ok {
		data.StartTime = active.StartTime.UnixMilli()
		data.ElapsedSeconds = active.Elapsed.Seconds()
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	by, err := history.ParseSortBy(r.URL.Query().Get("sort"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_SORT", err.Error())
		return
	}
	sessions := s.tracker.Sessions(by)
	if sessions == nil {
		sessions = []domain.CompletedSession{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: sessions})
}

func (s *Server) detectionsHandler(w http.ResponseWriter, r *http.Request) {
	events := s.tracker.Detections()
	if events == nil {
		events = []domain.DetectionEvent{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: events})
}

// confirmed reports whether the caller passed confirm=true.
func confirmed(r *http.Request) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	return ok
}

func (s *Server) clearSessionsHandler(w http.ResponseWriter, r *http.Request) {
	s.clear(w, r, "sessions", s.tracker.ClearSessions)
}

func (s *Server) clearDetectionsHandler(w http.ResponseWriter, r *http.Request) {
	s.clear(w, r, "detections", s.tracker.ClearDetections)
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request, target string, fn func(context.Context) error) {
	if !confirmed(r) {
		s.writeError(w, http.StatusPreconditionRequired, "CONFIRMATION_REQUIRED",
			"clearing "+target+" requires confirm=true")
		return
	}
	if err := fn(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "NOT_RUNNING", err.Error())
		return
	}
	s.logger.Info("cleared", zap.String("target", target))
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Message: "cleared " + target})
}

func (s *Server) presenceHandler(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&raw); err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_SAMPLE", err.Error())
		return
	}
	sample, err := signal.ParseSample(raw)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "INVALID_SAMPLE", err.Error())
		return
	}
	if err := s.forward(r.Context(), sample); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, "NOT_RUNNING", err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, APIResponse{Success: true})
}

func (s *Server) forward(ctx context.Context, sample signal.Sample) error {
	select {
	case s.samples <- sample:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wsHandler reads one JSON sample per message until the client disconnects.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Debug("presence stream connected", zap.String("remote", r.RemoteAddr))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("presence stream closed", zap.Error(err))
			}
			return
		}
		sample, err := signal.ParseSample(msg)
		if err != nil {
			_ = conn.WriteJSON(APIResponse{Success: false, Code: "INVALID_SAMPLE", Message: err.Error(), Timestamp: time.Now().UnixMilli()})
			continue
		}
		if err := s.forward(r.Context(), sample); err != nil {
			return
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	if resp.Timestamp == 0 {
		resp.Timestamp = time.Now().UnixMilli()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, APIResponse{Success: false, Code: code, Message: message})
}
