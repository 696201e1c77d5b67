package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// maxBodyBytes bounds one POSTed JSON-RPC message.
	maxBodyBytes = 16 * 1024 * 1024

	// DefaultHeartbeatInterval is the SSE ping period.
	DefaultHeartbeatInterval = 30 * time.Second
)

// HTTPHandler serves the protocol over HTTP: a POST endpoint for JSON-RPC
// request/response pairs and an SSE endpoint that only carries keep-alive
// heartbeats. Concurrent POSTs are independent; serialization per session
// key happens below, in the connection cache.
type HTTPHandler struct {
	dispatcher *Dispatcher
	mux        *http.ServeMux
	logger     *slog.Logger
	service    string
	target     string
	heartbeat  time.Duration
}

// HTTPOption configures an HTTPHandler.
type HTTPOption func(*HTTPHandler)

// WithHeartbeatInterval overrides the SSE ping period. Tests use this to
// avoid 30 second waits.
func WithHeartbeatInterval(d time.Duration) HTTPOption {
	return func(h *HTTPHandler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHTTPHandler builds the HTTP binding. service and target identify the
// gateway in the liveness probe response.
func NewHTTPHandler(dispatcher *Dispatcher, service, target string, logger *slog.Logger, opts ...HTTPOption) *HTTPHandler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	h := &HTTPHandler{
		dispatcher: dispatcher,
		logger:     logger,
		service:    service,
		target:     target,
		heartbeat:  DefaultHeartbeatInterval,
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleRoot)
	mux.HandleFunc("POST /mcp/v1/messages", h.handleMessage)
	mux.HandleFunc("GET /mcp/v1/sse", h.handleSSE)
	h.mux = mux
	return h
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleRoot is the liveness and identity probe.
func (h *HTTPHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": h.service,
		"target":  h.target,
	})
}

// handleMessage accepts one JSON-RPC message and answers synchronously.
// Notifications get an empty 204.
func (h *HTTPHandler) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "request body unreadable", http.StatusBadRequest)
		return
	}

	resp := h.dispatcher.Handle(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// handleSSE opens the keep-alive stream: one open event carrying a fresh
// session id, then a ping every heartbeat interval until the client goes
// away. No JSON-RPC payloads travel on this stream.
func (h *HTTPHandler) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sessionID := uuid.NewString()
	fmt.Fprintf(w, "event: open\ndata: {\"sessionId\":%q}\n\n", sessionID)
	flusher.Flush()
	h.logger.InfoContext(r.Context(), "sse stream opened", "session_id", sessionID)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			h.logger.InfoContext(r.Context(), "sse stream closed", "session_id", sessionID)
			return
		case <-ticker.C:
			fmt.Fprint(w, "event: ping\ndata: \n\n")
			flusher.Flush()
		}
	}
}

// ListenAndServe runs the HTTP binding on addr until the context is
// cancelled. No write timeout is set on the server; the SSE stream is
// long-lived on purpose.
func (h *HTTPHandler) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	h.logger.InfoContext(ctx, "http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
