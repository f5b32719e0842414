// Package api exposes the anchor and the message bus over JSON-RPC. The
// "anchor" and "bus" namespaces are served by go-ethereum's RPC server over
// HTTP and WebSocket; WebSocket clients may subscribe to state root and
// status change notifications.
package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/eth2030/xlbus/anchor"
	"github.com/eth2030/xlbus/bus"
	"github.com/eth2030/xlbus/log"
	"github.com/eth2030/xlbus/metrics"
)

// APIs returns the RPC services backed by a and b.
func APIs(a *anchor.StateRootAnchor, b *bus.MessageBus) []rpc.API {
	return []rpc.API{
		{Namespace: "anchor", Service: NewAnchorAPI(a)},
		{Namespace: "bus", Service: NewBusAPI(b)},
	}
}

// NewServer registers apis on a fresh RPC server.
func NewServer(apis []rpc.API) (*rpc.Server, error) {
	srv := rpc.NewServer()
	for _, api := range apis {
		if err := srv.RegisterName(api.Namespace, api.Service); err != nil {
			srv.Stop()
			return nil, fmt.Errorf("api: register %s: %w", api.Namespace, err)
		}
	}
	return srv, nil
}

// HandlerConfig configures the HTTP surface.
type HandlerConfig struct {
	Anchor    *anchor.StateRootAnchor
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer // nil disables /metrics
	WSOrigins []string
	Logger    *log.Logger
}

// NewHandler routes JSON-RPC over HTTP on "/" and over WebSocket on "/ws",
// with "/health" and "/metrics" alongside.
func NewHandler(srv *rpc.Server, cfg HandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.Module("api")

	r := mux.NewRouter()
	r.Use(metricsMiddleware(cfg.Metrics), loggingMiddleware(logger))

	r.Handle("/", srv).Methods(http.MethodPost)
	r.Handle("/ws", srv.WebsocketHandler(cfg.WSOrigins))
	r.HandleFunc("/health", healthHandler(cfg.Anchor)).Methods(http.MethodGet)
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer)).Methods(http.MethodGet)
	}
	return r
}

type health struct {
	Status        string         `json:"status"`
	RemoteChainID hexutil.Uint64 `json:"remoteChainId"`
	LatestHeight  hexutil.Uint64 `json:"latestHeight"`
}

func healthHandler(a *anchor.StateRootAnchor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := health{Status: "ok"}
		if a != nil {
			h.RemoteChainID = hexutil.Uint64(a.RemoteChainID())
			h.LatestHeight = hexutil.Uint64(a.LatestHeight())
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h)
	}
}

// metricsMiddleware records every request under its route template.
func metricsMiddleware(m *metrics.Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}
			m.HTTPRequest(r.Method, path, wrapped.statusCode, start)
		})
	}
}

func loggingMiddleware(logger *log.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("Served HTTP request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
		})
	}
}

// responseWriter captures the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack lets the WebSocket upgrade take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("api: connection does not support hijacking")
	}
	rw.written = true
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Flush implements http.Flusher.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
