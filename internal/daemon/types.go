package daemon

import "time"

// StartOptions configures the daemon (home, port, session TTL, DB, LLM, etc.).
type StartOptions struct {
	Home          string
	Port          int
	Dev           bool
	PprofAddr     string
	SessionTTL    time.Duration // session inactivity expiry
	SweepInterval time.Duration // how often expired sessions are reaped
	DBDriver      string        // "sqlite" (default), "postgres", or "none"
	DBURL         string        // for postgres: connection string (or DATABASE_URL env)
	// Generation LLM: when both URL and key are set, responses come from the
	// OpenAI-compatible endpoint; otherwise a static fallback generator is used.
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	EnableOtel bool // enable OpenTelemetry metrics (Prometheus exporter + HTTP/SSE instrumentation)
	// QualifyThreshold is the score at which the sales notification fires;
	// 0 uses the scorer's qualification threshold.
	QualifyThreshold int
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
