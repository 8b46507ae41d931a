// Package httpapi exposes the orchestrator over HTTP: the /orchestrate
// endpoints, a live SSE event stream, health and metrics.
package httpapi

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/leadline/leadline/internal/archive"
	"github.com/leadline/leadline/internal/archive/postgres"
	"github.com/leadline/leadline/internal/archive/sqlite"
	"github.com/leadline/leadline/internal/llm"
	"github.com/leadline/leadline/internal/notify"
	"github.com/leadline/leadline/internal/orchestrator"
	"github.com/leadline/leadline/internal/session"
	"github.com/leadline/leadline/pkg/models"
)

// limitBody wraps r.Body with http.MaxBytesReader so handlers cannot read
// more than maxBytes. Applied to methods that carry a body.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}

func bodyLimitMiddleware(maxBytes int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			limitBody(w, r, maxBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware sets permissive CORS headers for dev mode (web client on a
// different origin).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Home           string
	Addr           string
	Dev            bool
	APIKey         string        // if set, require X-API-Key header or query api_key
	SessionTTL     time.Duration // session inactivity expiry
	DBDriver       string        // "sqlite" (default), "postgres", or "none"
	DBURL          string        // for postgres: connection string (or DATABASE_URL env)
	MetricsHandler http.Handler  // if set, used for /metrics (OTel Prometheus handler)
	UseOtelHTTP    bool
	Generator      llm.Generator // if nil, built from LLM_* env

	// QualifyThreshold is the score at which the sales notification fires;
	// 0 uses the scorer's qualification threshold.
	QualifyThreshold int
}

// App holds the HTTP server and the orchestrator's collaborators.
type App struct {
	Server       *http.Server
	Hub          *SSEHub
	Sessions     *session.Store
	Orchestrator *orchestrator.Orchestrator
	Archive      archive.Archive
	Home         string
}

// NewApp creates the HTTP app and registers all routes.
func NewApp(opts ServerOptions) (*App, error) {
	hub := NewSSEHub()
	mux := http.NewServeMux()

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	sessions := session.NewStore(ttl)

	var arch archive.Archive
	var err error
	switch opts.DBDriver {
	case "postgres":
		arch, err = postgres.Open(opts.DBURL)
	case "none":
		arch = archive.Nop{}
	default:
		arch, err = sqlite.Open(opts.Home)
	}
	if err != nil {
		return nil, err
	}

	gen := opts.Generator
	if gen == nil {
		gen = generatorFromEnv()
	}

	orch := &orchestrator.Orchestrator{
		Sessions:         sessions,
		Generator:        gen,
		Archive:          arch,
		Notifiers:        notify.FromEnvValues(os.Getenv("SLACK_WEBHOOK_URL")),
		Hub:              hub,
		QualifyThreshold: opts.QualifyThreshold,
	}

	srvHandlers := &handlers{orch: orch, sessions: sessions, arch: arch}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"ok": true})
	})

	if opts.MetricsHandler != nil {
		mux.Handle("/metrics", opts.MetricsHandler)
	}

	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"home":        opts.Home,
			"session_ttl": ttl.String(),
			"db_driver":   opts.DBDriver,
		})
	})

	mux.HandleFunc("/stream", hub.Handler())
	mux.HandleFunc("/orchestrate", srvHandlers.orchestrate)
	mux.HandleFunc("/leads", srvHandlers.leads)

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(models.DefaultMaxRequestBodyBytes, handler)
	if opts.Dev {
		handler = corsMiddleware(handler)
	}
	if opts.APIKey != "" {
		handler = apiKeyMiddleware(opts.APIKey, handler)
	}
	handler = requestLogMiddleware(handler)
	if opts.UseOtelHTTP {
		handler = otelhttp.NewHandler(handler, "leadline")
	}
	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(func() {
		_ = arch.Close()
	})

	return &App{Server: srv, Hub: hub, Sessions: sessions, Orchestrator: orch, Archive: arch, Home: opts.Home}, nil
}

func generatorFromEnv() llm.Generator {
	base := os.Getenv("LLM_BASE_URL")
	key := os.Getenv("LLM_API_KEY")
	if base == "" || key == "" {
		return &llm.Static{}
	}
	model := os.Getenv("LLM_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &llm.OpenAI{BaseURL: base, APIKey: key, Model: model}
}

// responseRecorder captures status code for logging and forwards Flusher if supported.
type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func apiKeyMiddleware(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/health" || path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key != apiKey {
			writeJSONError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		slog.Info("request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
