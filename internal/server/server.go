// Package server is the operations endpoint of the departure board. It
// reports health and exposes metrics; departures are managed from the shell.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"departure-board/internal/departure"
	"departure-board/internal/logging"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
)

type Options struct {
	Port        string
	ServiceName string
	Station     string
}

type Server struct {
	httpServer *http.Server
	registry   *prometheus.Registry
}

func NewServer(opts Options, register *departure.InstrumentedRegister) *Server {
	registry := newRegistry(opts.Station, register)

	r := chi.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(TracingMiddleware(otel.Tracer("departure-board-http-server")))
	r.Use(LoggingMiddleware)

	r.Method(http.MethodGet, "/health", &healthHandler{
		service:  opts.ServiceName,
		station:  opts.Station,
		register: register,
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	httpServer := &http.Server{
		Addr:         ":" + opts.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		registry:   registry,
	}
}

// newRegistry holds the runtime collectors and a gauge that reads the
// departure count on each scrape.
func newRegistry(station string, register *departure.InstrumentedRegister) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "departure_board_departures",
			Help:        "Departures currently on the board.",
			ConstLabels: prometheus.Labels{"station": station},
		}, func() float64 {
			return float64(register.Count(context.Background()))
		}),
	)
	return registry
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	logging.Logger().Infof("Starting HTTP server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	logging.Logger().Info("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost%s", s.httpServer.Addr)
}
