package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// sseClient represents a connected SSE client.
type sseClient struct {
	id     string
	events chan []byte
}

type sseHub struct {
	srv     *Server
	mu      sync.Mutex
	clients map[string]*sseClient
	nextID  int
}

// Handler returns the SSE transport: GET /sse opens an event stream whose
// first event names the message endpoint, POST /message?sessionId=...
// dispatches a request and /health reports the number of connected clients.
func (s *Server) Handler() http.Handler {
	h := &sseHub{srv: s, clients: make(map[string]*sseClient)}
	mux := http.NewServeMux()
	mux.HandleFunc("/sse", h.handleSSE)
	mux.HandleFunc("/message", h.handleMessage)
	mux.HandleFunc("/health", h.handleHealth)
	return mux
}

// ServeSSE listens on addr until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	hs := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	s.logger().Info("SSE server listening", zap.String("addr", addr))
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *sseHub) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	count := len(h.clients)
	h.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":          "ok",
		"connectedAgents": count,
	})
}

func (h *sseHub) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h.mu.Lock()
	h.nextID++
	client := &sseClient{
		id:     fmt.Sprintf("client-%d", h.nextID),
		events: make(chan []byte, 64),
	}
	h.clients[client.id] = client
	h.mu.Unlock()

	log := h.srv.logger().With(zap.String("client", client.id))
	log.Info("SSE client connected")

	fmt.Fprintf(w, "event: endpoint\ndata: http://%s/message?sessionId=%s\n\n", r.Host, client.id)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			log.Info("SSE client disconnected")
			return
		case data := <-client.events:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (h *sseHub) handleMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(&JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: codeParse, Message: "Parse error"},
		})
		return
	}

	respData := h.srv.encode(h.srv.handle(r.Context(), req))

	if sessionID := r.URL.Query().Get("sessionId"); sessionID != "" {
		h.mu.Lock()
		client, ok := h.clients[sessionID]
		h.mu.Unlock()
		if ok {
			select {
			case client.events <- respData:
			default:
				h.srv.logger().Warn("SSE client buffer full, dropping message", zap.String("client", sessionID))
			}
		}
	}

	// The response is also returned inline for request/response clients.
	_, _ = w.Write(respData)
}
