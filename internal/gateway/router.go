package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"gemini-gateway/internal/config"
	"gemini-gateway/internal/credential"
	"gemini-gateway/internal/metrics"
	"gemini-gateway/internal/validator"
)

// Deps bundles everything the router needs to wire the HTTP route table.
type Deps struct {
	Orchestrator *Orchestrator
	Validator    *validator.Validator
	Registry     *credential.Registry
	Live         *config.Live
	Metrics      *metrics.Metrics
	BodyLimit    int64
	HealthPath   string
	StatsPath    string
}

// NewRouter builds the chi router: the chat completions and verify
// endpoints, health/stats introspection, and /metrics for observability.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  corsOriginFunc(d.Live),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "x-goog-api-key", "User-Agent", "Accept"},
		MaxAge:           300,
	}))

	r.Get("/", d.serveRoot)
	r.Get(healthPathOrDefault(d.HealthPath), d.serveHealth)
	r.Get(statsPathOrDefault(d.StatsPath), d.serveStats)

	r.Post("/chat/completions", d.serveChatCompletions)
	r.Post("/v1/chat/completions", d.serveChatCompletions)
	r.Post("/verify", d.serveVerify)

	r.Mount("/metrics", d.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { writeMethodNotAllowed(w) })

	return r
}

// corsOriginFunc re-reads the live CORS origin list on every request so a
// config hot-reload takes effect without rebuilding the middleware chain.
func corsOriginFunc(live *config.Live) func(r *http.Request, origin string) bool {
	return func(r *http.Request, origin string) bool {
		for _, allowed := range live.CORSOrigins() {
			if allowed == "*" || allowed == origin {
				return true
			}
		}
		return false
	}
}

func healthPathOrDefault(p string) string {
	if p == "" {
		return "/health"
	}
	return p
}

func statsPathOrDefault(p string) string {
	if p == "" {
		return "/stats"
	}
	return p
}

func (d Deps) serveChatCompletions(w http.ResponseWriter, r *http.Request) {
	d.Orchestrator.ServeChatCompletions(w, r, d.BodyLimit)
}

func (d Deps) serveVerify(w http.ResponseWriter, r *http.Request) {
	d.Orchestrator.ServeVerify(w, r, d.Validator)
}

func (d Deps) serveRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "gemini-gateway",
		"endpoints": map[string]string{
			"health":          healthPathOrDefault(d.HealthPath),
			"stats":           statsPathOrDefault(d.StatsPath),
			"chat_completions": "/v1/chat/completions",
			"verify":          "/verify",
			"metrics":         "/metrics",
		},
	})
}

func (d Deps) serveHealth(w http.ResponseWriter, r *http.Request) {
	eligible, tripped, probing := d.Registry.HealthCounts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"eligible":  eligible,
		"tripped":   tripped,
		"probing":   probing,
	})
}

func (d Deps) serveStats(w http.ResponseWriter, r *http.Request) {
	records := d.Registry.All()
	out := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		snap := rec.Snapshot()
		out = append(out, map[string]any{
			"health":                snap.Health,
			"consecutive_failures":  snap.ConsecutiveFailures,
			"total_requests":        snap.TotalRequests,
			"total_successes":       snap.TotalSuccesses,
			"total_failures":        snap.TotalFailures,
			"in_flight":             snap.InFlight,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"policy":      d.Live.Policy(),
		"credentials": out,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", uuid.NewString())
		next.ServeHTTP(w, r)
	})
}
