// Package httpadapter mounts the HTTP pseudo-adapter (httphandler) onto a
// chi router: global logging/recovery middleware, one route for RPC
// traffic, and Prometheus metrics exposed alongside it.
package httpadapter

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kkrpc-go/kkrpc/adapter"
	"github.com/kkrpc-go/kkrpc/httphandler"
)

// Server exposes the RPC endpoint at POST /rpc and, always, the default
// Prometheus registry's collectors at /metrics.
type Server struct {
	router  chi.Router
	adapter *httphandler.ServerAdapter
}

// NewServer builds the router and the underlying pseudo-adapter. Pass
// Adapter() to channel.New to expose a local API over it.
func NewServer() *Server {
	s := &Server{adapter: httphandler.NewServer()}
	s.routes()
	return s
}

// Adapter returns the adapter.Adapter to hand to channel.New.
func (s *Server) Adapter() adapter.Adapter {
	return s.adapter
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/rpc", s.adapter.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// NewClient is a thin convenience wrapper over httphandler.NewClient,
// pointed at a peer's /rpc route.
func NewClient(baseURL string, client *http.Client) *httphandler.ClientAdapter {
	return httphandler.NewClient(baseURL+"/rpc", client)
}
