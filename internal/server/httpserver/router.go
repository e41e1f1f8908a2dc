package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

// ReadyCheck reports whether one dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Logger for request logging.
	Logger logger.Logger

	// Gatherer is exposed at /metrics. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	// ReadyChecks are evaluated in order by /ready.
	ReadyChecks map[string]ReadyCheck

	// RateLimit is the per-IP request rate (requests/second). 0 disables it.
	RateLimit float64
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	if cfg == nil {
		cfg = &RouterConfig{}
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}

	metrics := promhttp.Handler()
	if cfg.Gatherer != nil {
		metrics = promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /ready", readyHandler(cfg.ReadyChecks))
	mux.Handle("GET /metrics", metrics)

	// Order: RateLimit -> RequestID -> Recover -> Logging -> mux
	return Chain(mux,
		RateLimit(cfg.RateLimit),
		RequestID(),
		Recover(log),
		Logging(log),
	)
}

type healthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Version: buildinfo.Get().Version,
	})
}

func readyHandler(checks map[string]ReadyCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status: "ready",
			Time:   time.Now().UTC().Format(time.RFC3339),
		}
		status := http.StatusOK

		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(r.Context()); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "not ready"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		writeJSON(w, status, resp)
	})
}
