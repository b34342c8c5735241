package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/amaya/internal/platform/timeouts"
)

// DefaultHTTPAddr keeps the HTTP transport on loopback unless configured.
const DefaultHTTPAddr = "localhost:8765"

// HTTPConfig configures the streamable HTTP transport.
type HTTPConfig struct {
	Addr         string
	AllowedHosts []string
	Bearer       *BearerConfig
}

// HTTPTransport serves MCP over streamable HTTP at /mcp with a plain-text
// health probe at /mcp/health.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	bearer       *BearerConfig
	handler      http.Handler
}

// NewHTTPTransport binds the server to an HTTP transport.
func NewHTTPTransport(server *Server, cfg HTTPConfig) (*HTTPTransport, error) {
	if server == nil || server.mcpServer == nil {
		return nil, fmt.Errorf("MCP server is not configured")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultHTTPAddr
	}
	t := &HTTPTransport{
		addr:         addr,
		allowedHosts: parseAllowedHosts(cfg.AllowedHosts),
		bearer:       cfg.Bearer,
	}
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp/health", t.handleHealth)
	mux.Handle("/mcp", t.guard(streamable))
	t.handler = mux
	return t, nil
}

// Handler returns the transport's HTTP handler.
func (t *HTTPTransport) Handler() http.Handler {
	return t.handler
}

// guard rejects requests that fail the host or bearer checks.
func (t *HTTPTransport) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := t.validateLocalRequest(r); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		if !t.authorizeRequest(w, r) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth handles GET /mcp/health.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Printf("Failed to write health response: %v", err)
	}
}

// Serve listens on the configured address until ctx is canceled, then shuts
// the HTTP server down gracefully.
func (t *HTTPTransport) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}
	return t.serveListener(ctx, listener)
}

func (t *HTTPTransport) serveListener(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           t.handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()
	log.Printf("mcp http transport listening at %s", listener.Addr())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown mcp http: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp http: %w", err)
	}
}
