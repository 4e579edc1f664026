// HTTP surface for the request governor.
//
// DESIGN: Route groups:
//   - POST /v1/query:  the governed query endpoint (query.go)
//   - /admin/*:        operator controls, loopback only (admin.go, stats.go)
//   - GET  /health:    liveness plus a config-store round trip
//
// Every designed outcome (blocked, offline, cached, served) is a 200 with a
// JSON body; non-200 statuses are reserved for malformed requests and
// genuine upstream failures.
package gateway

import (
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/studyloop/governor/internal/adminstore"
	"github.com/studyloop/governor/internal/governor"
	"github.com/studyloop/governor/internal/ledger"
)

// Gateway holds the handler dependencies.
type Gateway struct {
	gov       *governor.Governor
	admin     *adminstore.Store
	ledger    *ledger.Ledger
	history   *ledger.History
	startTime time.Time
}

// New creates a Gateway. history may be nil; the stats endpoint then omits
// the durable aggregates.
func New(gov *governor.Governor, admin *adminstore.Store, l *ledger.Ledger, history *ledger.History) *Gateway {
	return &Gateway{
		gov:       gov,
		admin:     admin,
		ledger:    l,
		history:   history,
		startTime: time.Now(),
	}
}

// Routes builds the chi router for the service.
func (g *Gateway) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(2 * time.Minute))

	r.Get("/health", g.handleHealth)
	r.Post("/v1/query", g.handleQuery)

	// Operator controls carry no auth layer; they are reachable from the
	// host only, same as the metrics surface.
	r.Route("/admin", func(r chi.Router) {
		r.Use(loopbackOnly)
		r.Get("/budget", g.handleGetBudget)
		r.Put("/budget", g.handleSetBudget)
		r.Get("/overrides", g.handleGetOverrides)
		r.Put("/overrides/{category}", g.handleSetOverride)
		r.Delete("/overrides/{category}", g.handleRemoveOverride)
		r.Get("/killswitch", g.handleGetKillSwitch)
		r.Put("/killswitch", g.handleSetKillSwitch)
		r.Get("/stats", g.handleStats)
	})

	return r
}

// handleHealth returns service health. A config-store round trip failure
// degrades the status instead of failing the endpoint.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	}
	if _, err := g.admin.KillSwitch(r.Context()); err != nil {
		health["status"] = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	if health["status"] != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(health)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": msg, "type": "governor_error"},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// loopbackOnly rejects requests that do not originate from the local host.
func loopbackOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
