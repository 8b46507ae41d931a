// Package daemon manages the leadline server process: foreground and
// background start, stop, status, the singleton lock, and the expired-session
// sweeper.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leadline/leadline/internal/httpapi"
	"github.com/leadline/leadline/internal/llm"
	"github.com/leadline/leadline/internal/otel"
)

var errNotRunning = errors.New("leadline is not running")

func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	if opts.Port == 0 {
		opts.Port = 3764
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}

	// Ensure dirs exist.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return err
	}

	// Acquire singleton lock (released on exit).
	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	// Optional pprof.
	startPprof(opts.PprofAddr)

	// Write PID + addr files.
	pid := os.Getpid()
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return err
	}
	addr := fmt.Sprintf("0.0.0.0:%d", opts.Port)
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	// Early port check for clearer error.
	if err := checkPortAvailable(opts.Port); err != nil {
		return err
	}

	if opts.LLMBaseURL == "" {
		opts.LLMBaseURL = os.Getenv("LLM_BASE_URL")
	}
	if opts.LLMAPIKey == "" {
		opts.LLMAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.LLMModel == "" {
		opts.LLMModel = os.Getenv("LLM_MODEL")
		if opts.LLMModel == "" {
			opts.LLMModel = "gpt-4o-mini"
		}
	}
	srvOpts := httpapi.ServerOptions{
		Home:             opts.Home,
		Addr:             addr,
		Dev:              opts.Dev,
		APIKey:           os.Getenv("LEADLINE_API_KEY"),
		SessionTTL:       opts.SessionTTL,
		DBDriver:         opts.DBDriver,
		DBURL:            opts.DBURL,
		QualifyThreshold: opts.QualifyThreshold,
	}
	if opts.LLMBaseURL != "" && opts.LLMAPIKey != "" {
		srvOpts.Generator = &llm.OpenAI{
			BaseURL: opts.LLMBaseURL,
			APIKey:  opts.LLMAPIKey,
			Model:   opts.LLMModel,
		}
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "leadline")
		if err != nil {
			slog.Warn("otel init failed, metrics disabled", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
		}
	}
	app, err := httpapi.NewApp(srvOpts)
	if err != nil {
		return err
	}
	if opts.EnableOtel {
		_ = otel.InitMetrics(ctx, func() int64 {
			return int64(app.Sessions.Len())
		})
	}

	slog.Info("daemon starting", "addr", addr, "home", opts.Home, "ttl", opts.SessionTTL)
	errCh := make(chan error, 1)
	go func() {
		// Sweeper reaps expired sessions alongside the HTTP server.
		go runSweeper(ctx, opts.SweepInterval, app)
		errCh <- app.Server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runSweeper periodically removes sessions whose TTL has lapsed and publishes
// the count to observers.
func runSweeper(ctx context.Context, interval time.Duration, app *httpapi.App) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.Sessions.SweepExpired(); n > 0 {
				slog.Info("swept expired sessions", "count", n)
				otel.RecordSwept(ctx, n)
				app.Hub.PublishJSON(map[string]any{"type": "sessions_swept", "count": n})
			}
		}
	}
}

// backgroundArgs builds the child argv for StartBackground. Every option the
// foreground command accepts is forwarded so background mode cannot silently
// lose a setting.
func backgroundArgs(opts StartOptions) []string {
	args := []string{
		"start",
		"--foreground",
		"--home", opts.Home,
		"--port", strconv.Itoa(opts.Port),
		"--session-ttl", opts.SessionTTL.String(),
		"--sweep-interval", opts.SweepInterval.String(),
	}
	if opts.Dev {
		args = append(args, "--dev")
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	if opts.DBDriver != "" {
		args = append(args, "--db-driver", opts.DBDriver)
	}
	if opts.DBURL != "" {
		args = append(args, "--db-url", opts.DBURL)
	}
	if opts.LLMBaseURL != "" {
		args = append(args, "--llm-url", opts.LLMBaseURL)
	}
	if opts.LLMAPIKey != "" {
		args = append(args, "--llm-key", opts.LLMAPIKey)
	}
	if opts.LLMModel != "" {
		args = append(args, "--llm-model", opts.LLMModel)
	}
	if opts.EnableOtel {
		args = append(args, "--otel")
	}
	return args
}

func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}

	// Ensure dirs exist before starting.
	if err := os.MkdirAll(protectedDir(opts.Home), 0o755); err != nil {
		return 0, err
	}

	// Best-effort: refuse to start if already running.
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("leadline already running (pid %d)", st.PID)
	}

	logFile := filepath.Join(protectedDir(opts.Home), "daemon.log")
	stderr, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for child lifetime; closing here may break writes on some platforms.

	cmd := exec.Command(exe, backgroundArgs(opts)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	// Wait briefly for pid file to appear or process to die.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, _ := Status(ctx, opts.Home); st.Running {
			return st.PID, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Fallback to started pid even if status isn't ready yet.
	return cmd.Process.Pid, nil
}

func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}

	proc, err := os.FindProcess(st.PID)
	if err != nil {
		// On unix FindProcess always succeeds; keep this for completeness.
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if st2, _ := Status(ctx, home); !st2.Running {
			return true, nil
		}
		time.Sleep(100 * time.Millisecond)
	}

	_ = proc.Kill()
	return true, nil
}

func Status(ctx context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{Running: false}, nil
	}
	pidStr := strings.TrimSpace(string(pb))
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return StatusInfo{Running: false}, nil
	}

	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{Running: false}, nil
	}

	addr := ""
	if ab, err := os.ReadFile(addrPath(home)); err == nil {
		addr = strings.TrimSpace(string(ab))
	}
	if addr == "" {
		addr = "unknown"
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkPortAvailable(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return fmt.Errorf("port %d is already in use", port)
	}
	_ = ln.Close()
	return nil
}
