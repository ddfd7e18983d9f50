package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/binaural-intercom/internal/config"
	"github.com/skypro1111/binaural-intercom/internal/intercom"
	"github.com/skypro1111/binaural-intercom/internal/metrics"
	"github.com/skypro1111/binaural-intercom/internal/pipeline"
)

// Version is reported by the HTTP API
const Version = "1.0.0"

// HTTPServer provides HTTP API endpoints for monitoring a session
type HTTPServer struct {
	server   *http.Server
	logger   *slog.Logger
	config   *config.Config
	runner   *intercom.Runner
	peer     *Peer
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	startTime time.Time
}

// NewHTTPServer creates a new HTTP API server. gatherer backs /metrics.
func NewHTTPServer(cfg config.HTTPConfig, logger *slog.Logger, appConfig *config.Config,
	runner *intercom.Runner, peer *Peer, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		runner:    runner,
		peer:      peer,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	h.setupRoutes(mux)

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))
	mux.HandleFunc("/session", h.withMetrics("/session", h.handleSession))
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))
	mux.HandleFunc("/stats", h.withMetrics("/stats", h.handleStats))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// Handler returns the HTTP handler serving every route
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Capture the status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := fmt.Sprintf("%d", ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start serves the API until Stop is called. It returns once the listener
// is closed.
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("Failed to encode response", slog.String("error", err.Error()))
	}
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	runnerStats := h.runner.Stats()
	peerStats := h.peer.GetStatistics()

	status, code := "healthy", http.StatusOK
	if runnerStats.Pipeline.State != pipeline.StateReady.String() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	health := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"service": map[string]any{
			"name":    "binaural-intercom",
			"version": Version,
		},
		"components": map[string]any{
			"pipeline": map[string]any{
				"state":         runnerStats.Pipeline.State,
				"chunks_sent":   runnerStats.Pipeline.ChunksSent,
				"chunks_played": runnerStats.Pipeline.ChunksPlayed,
			},
			"peer": map[string]any{
				"state":            peerStats.PeerState,
				"packets_received": peerStats.PacketsReceived,
				"packets_sent":     peerStats.PacketsSent,
				"queue_size":       peerStats.QueueSize,
			},
			"buffer": map[string]any{
				"started":     runnerStats.Buffer.Started,
				"last_update": runnerStats.Buffer.LastUpdate,
			},
		},
	}

	h.writeJSON(w, code, health)
}

// handleSession implements the /session endpoint
func (h *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, h.runner.Session())
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]any{
		"session": map[string]any{
			"channels":         h.config.Session.Channels,
			"sample_rate":      h.config.Session.SampleRate,
			"frames_per_chunk": h.config.Session.FramesPerChunk,
			"mode":             h.config.Session.Mode,
			"wavelet":          h.config.Session.Wavelet,
			"levels":           h.config.Session.Levels,
			"padding":          h.config.Session.Padding,
			"sample_bits":      h.config.Session.SampleBits,
			"coefficient_bits": h.config.Session.CoefficientBits,
			"overflow_policy":  h.config.Session.OverflowPolicy,
		},
		"transport": map[string]any{
			"listen_address":    h.config.Transport.ListenAddress,
			"listen_port":       h.config.Transport.ListenPort,
			"peer_address":      h.config.Transport.PeerAddress,
			"workers":           h.config.Transport.Workers,
			"queue_size":        h.config.Transport.QueueSize,
			"max_bitplanes":     h.config.Transport.MaxBitplanes,
			"announce_interval": h.config.Transport.AnnounceInterval,
		},
		"buffer": map[string]any{
			"cells": h.config.Buffer.Cells,
		},
		"device": map[string]any{
			"source": h.config.Device.Source,
			"sink":   h.config.Device.Sink,
		},
		"logging": map[string]any{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	h.writeJSON(w, http.StatusOK, cfg)
}

// handleStats implements the /stats endpoint
func (h *HTTPServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := map[string]any{
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC(),
		"runner":    h.runner.Stats(),
		"peer":      h.peer.GetStatistics(),
	}

	h.writeJSON(w, http.StatusOK, stats)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]any{
		"service": "Binaural Intercom",
		"version": Version,
		"endpoints": map[string]any{
			"GET /":        "API documentation",
			"GET /health":  "Service health check",
			"GET /session": "Session layout and calibration",
			"GET /config":  "Get service configuration",
			"GET /stats":   "Get runner, buffer and transport statistics",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	h.writeJSON(w, http.StatusOK, apiDoc)
}
