package cli

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/leadline/leadline/internal/config"
	"github.com/leadline/leadline/internal/daemon"
)

func newStartCmd() *cobra.Command {
	var (
		port          int
		foreground    bool
		dev           bool
		pprofAddr     string
		envFile       string
		sessionTTL    time.Duration
		sweepInterval time.Duration
		dbDriver      string
		dbURL         string
		llmBaseURL    string
		llmAPIKey     string
		llmModel      string
		enableOtel    bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the Leadline daemon (HTTP API + session sweeper)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			}
			home := config.MustHomeFrom(cmd.Context())

			// config.yaml supplies defaults; flags win when set explicitly.
			svc, err := config.LoadService(home)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("session-ttl") {
				sessionTTL = svc.SessionTTL
			}
			if !cmd.Flags().Changed("sweep-interval") {
				sweepInterval = svc.SweepInterval
			}

			opts := daemon.StartOptions{
				Home:             home,
				Port:             port,
				Dev:              dev,
				PprofAddr:        pprofAddr,
				SessionTTL:       sessionTTL,
				SweepInterval:    sweepInterval,
				DBDriver:         dbDriver,
				DBURL:            dbURL,
				LLMBaseURL:       llmBaseURL,
				LLMAPIKey:        llmAPIKey,
				LLMModel:         llmModel,
				EnableOtel:       enableOtel,
				QualifyThreshold: svc.QualifyThreshold,
			}

			api := (&url.URL{Scheme: "http", Host: fmt.Sprintf("localhost:%d", port)}).String()

			if foreground {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting Leadline in foreground on %s\n", api)
				return daemon.StartForeground(cmd.Context(), opts)
			}

			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Leadline started (pid %d)\n", pid)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "API: %s\n", api)
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 3764, "Port for the HTTP API")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run in foreground (do not daemonize)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (CORS for local web clients)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().DurationVar(&sessionTTL, "session-ttl", 30*time.Minute, "Session inactivity expiry")
	cmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Minute, "How often expired sessions are reaped")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "sqlite", "Lead archive driver: sqlite, postgres, or none")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "DB connection string (for postgres; or set DATABASE_URL)")
	cmd.Flags().StringVar(&llmBaseURL, "llm-url", "", "OpenAI-compatible base URL for response generation (or set LLM_BASE_URL)")
	cmd.Flags().StringVar(&llmAPIKey, "llm-key", "", "API key for response generation (or set OPENAI_API_KEY)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "Model for response generation (default gpt-4o-mini)")
	cmd.Flags().BoolVar(&enableOtel, "otel", true, "Enable OpenTelemetry metrics (Prometheus exporter, HTTP/SSE instrumentation)")

	return cmd
}
