// Package web serves the fabric node's operational front door: a
// liveness/readiness endpoint for orchestration probes, a small admin
// surface over the running configuration, and a WebSocket feed that
// pushes the node's health status to connected dashboards.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/orange-opensource/its-fabric/pkg/health"
)

// ConfigManager is the subset of pkg/config.Manager the admin surface
// needs.
type ConfigManager interface {
	GetConfig() map[string]interface{}
	UpdateConfig(updates map[string]interface{}) error
	GetSection(name string) (map[string]interface{}, error)
	UpdateSection(name string, section map[string]interface{}) error
	RestartService() error
}

// Server is the fabric node's HTTP/WebSocket front door.
type Server struct {
	port          int
	adminToken    string
	server        *http.Server
	logger        zerolog.Logger
	health        *health.HealthCheck
	configManager ConfigManager

	wsClients    map[*websocket.Conn]bool
	wsClientsMux sync.RWMutex
	upgrader     websocket.Upgrader
}

// Config configures a Server.
type Config struct {
	Port int
	// AdminToken, when non-empty, is the bearer token required to read
	// or change configuration, or trigger a restart. An empty token
	// disables the admin surface entirely (only /healthz and the
	// status WebSocket are served).
	AdminToken    string
	Health        *health.HealthCheck
	ConfigManager ConfigManager
	Logger        zerolog.Logger
}

// New builds a Server. Start must be called to actually serve.
func New(cfg Config) *Server {
	return &Server{
		port:          cfg.Port,
		adminToken:    cfg.AdminToken,
		logger:        cfg.Logger,
		health:        cfg.Health,
		configManager: cfg.ConfigManager,
		wsClients:     make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start serves until the process is terminated or Stop is called. It
// blocks, so callers typically run it in its own goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ws/status", s.handleStatusWebSocket)

	if s.adminToken != "" {
		mux.HandleFunc("/api/config", s.requireAdmin(s.handleConfiguration))
		mux.HandleFunc("/api/config/", s.requireAdmin(s.handleConfigSection))
		mux.HandleFunc("/api/system/restart", s.requireAdmin(s.handleSystemRestart))
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.corsMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Int("port", s.port).Msg("web: starting front door")
	go s.broadcastLoop()

	return s.server.ListenAndServe()
}

// Stop closes every WebSocket client and shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("web: stopping front door")

	s.wsClientsMux.Lock()
	for client := range s.wsClients {
		client.Close()
	}
	s.wsClientsMux.Unlock()

	return s.server.Shutdown(ctx)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" || token != s.adminToken {
			s.sendError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	status := s.health.GetStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	s.sendJSON(w, code, status)
}

func (s *Server) handleConfiguration(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.sendJSON(w, http.StatusOK, s.configManager.GetConfig())

	case http.MethodPost, http.MethodPut:
		var updates map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.configManager.UpdateConfig(updates); err != nil {
			s.sendError(w, http.StatusInternalServerError, "failed to update configuration")
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"message": "configuration updated"})

	default:
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleConfigSection(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/config/")

	switch r.Method {
	case http.MethodGet:
		section, err := s.configManager.GetSection(name)
		if err != nil {
			s.sendError(w, http.StatusNotFound, err.Error())
			return
		}
		s.sendJSON(w, http.StatusOK, section)

	case http.MethodPost, http.MethodPut:
		var section map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&section); err != nil {
			s.sendError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.configManager.UpdateSection(name, section); err != nil {
			s.sendError(w, http.StatusInternalServerError, "failed to update section")
			return
		}
		s.sendJSON(w, http.StatusOK, map[string]string{"message": "section updated"})

	default:
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSystemRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"message": "restart initiated"})
	go func() {
		time.Sleep(2 * time.Second)
		if err := s.configManager.RestartService(); err != nil {
			s.logger.Error().Err(err).Msg("web: restart failed")
		}
	}()
}

func (s *Server) handleStatusWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("web: failed to upgrade status websocket")
		return
	}

	s.wsClientsMux.Lock()
	s.wsClients[conn] = true
	s.wsClientsMux.Unlock()
	s.logger.Info().Msg("web: status client connected")

	defer func() {
		s.wsClientsMux.Lock()
		delete(s.wsClients, conn)
		s.wsClientsMux.Unlock()
		conn.Close()
		s.logger.Info().Msg("web: status client disconnected")
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Broadcast pushes a typed message to every connected status client.
func (s *Server) Broadcast(messageType string, payload interface{}) {
	message := map[string]interface{}{
		"type":      messageType,
		"payload":   payload,
		"timestamp": time.Now().Unix(),
	}
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.Error().Err(err).Msg("web: failed to marshal status message")
		return
	}

	s.wsClientsMux.RLock()
	defer s.wsClientsMux.RUnlock()
	for client := range s.wsClients {
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			s.logger.Warn().Err(err).Msg("web: failed to push to status client")
		}
	}
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		if s.health != nil {
			s.Broadcast("health", s.health.GetStatus())
		}
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("web: failed to encode JSON response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
