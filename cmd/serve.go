package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lift/internal/api"
	"github.com/joescharf/lift/internal/lock"
	"github.com/joescharf/lift/internal/workout"
)

const (
	serveShutdownTimeout = 10 * time.Second
	serveStopTimeout     = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API in the foreground",
	Long: `Serve the workout HTTP API, including the live event stream at
/api/v1/workouts/active/events. The server drives the configured owner's
workout; CLI workout commands for that owner are refused while it runs.

By default it listens on port 8080. Use --port or serve.port to change it.
Use 'lift serve start' to run it in the background.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveRun()
	},
}

var serveStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the API server in the background",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStartRun()
	},
}

var serveStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStopRun()
	},
}

var serveStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the API server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveStatusRun()
	},
}

func init() {
	serveCmd.PersistentFlags().IntP("port", "p", 8080, "port to listen on")
	_ = viper.BindPFlag("serve.port", serveCmd.PersistentFlags().Lookup("port"))

	serveCmd.AddCommand(serveStartCmd)
	serveCmd.AddCommand(serveStopCmd)
	serveCmd.AddCommand(serveStatusCmd)
	rootCmd.AddCommand(serveCmd)
}

// pidFile returns the lock recording the running server's PID.
func pidFile() *lock.Lock {
	return &lock.Lock{Path: filepath.Join(viper.GetString("state_dir"), "lift-serve.pid")}
}

// serveLogPath is where a background server writes its output.
func serveLogPath() string {
	return filepath.Join(viper.GetString("state_dir"), "lift-serve.log")
}

func serveRun() error {
	pf := pidFile()
	if err := pf.Acquire(); err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return fmt.Errorf("server already running: %w", err)
		}
		return err
	}
	defer func() { _ = pf.Release() }()

	owner := currentOwner()
	release, err := acquireOwnerLock(owner)
	if err != nil {
		return err
	}
	defer release()

	s, err := getStore()
	if err != nil {
		return err
	}
	m, err := getManager()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	if err := resumeForServing(ctx, m, owner); err != nil {
		return err
	}

	var recapper api.Recapper
	if key := viper.GetString("anthropic.api_key"); key != "" {
		recapper = newRecapper(key, viper.GetString("anthropic.model"))
	}
	srv := api.NewServer(s, m, recapper, owner, logger)

	// Event streams never end on their own; cancel them when shutdown begins.
	streamCtx, cancelStreams := context.WithCancel(context.Background())
	defer cancelStreams()
	addr := fmt.Sprintf(":%d", viper.GetInt("serve.port"))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return streamCtx },
	}
	httpSrv.RegisterOnShutdown(cancelStreams)

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	ui.Info("Serving API at http://localhost%s/api/v1 (owner %s)", addr, owner)

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("listen on %s: %w", addr, err)
		}
	case <-ctx.Done():
		ui.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := m.Close(shutdownCtx); err != nil && serveErr == nil {
		serveErr = fmt.Errorf("save workout: %w", err)
	}
	return serveErr
}

// resumeForServing abandons a stale workout and loads a fresh one so its rest
// timer runs in the server process. It logs instead of printing since stdout
// carries the protocol under 'lift mcp'.
func resumeForServing(ctx context.Context, m *workout.Manager, owner string) error {
	stale, err := m.Recover(ctx, owner, viper.GetDuration("workout.stale_after"))
	if err != nil {
		return err
	}
	if stale != nil {
		logger.Warn("stale workout abandoned", "session", stale.ID, "owner", owner)
	}
	sess, err := m.Resume(ctx, owner)
	if errors.Is(err, workout.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("serving workout in progress", "session", sess.ID(), "status", sess.Status())
	return nil
}

func serveStartRun() error {
	pf := pidFile()
	if pid, running := pf.Holder(); running {
		return fmt.Errorf("server already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable: %w", err)
	}
	args := []string{"serve", "--port", fmt.Sprint(viper.GetInt("serve.port")), "--owner", currentOwner()}
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		args = append(args, "--config", cfgFile)
	}

	logPath := serveLogPath()
	if dryRun {
		ui.DryRunMsg("Would run %s %v in the background, logging to %s", exe, args, logPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open server log: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	setDaemonAttrs(child)
	if err := child.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	pid := child.Process.Pid
	_ = child.Process.Release()

	ui.Success("Server started (pid %d), logging to %s", pid, logPath)
	return nil
}

func serveStopRun() error {
	pf := pidFile()
	pid, running := pf.Holder()
	if !running {
		return fmt.Errorf("server not running")
	}
	if dryRun {
		ui.DryRunMsg("Would stop server (pid %d)", pid)
		return nil
	}

	if err := pf.Signal(sigTERM()); err != nil {
		return fmt.Errorf("stop server (pid %d): %w", pid, err)
	}
	deadline := time.Now().Add(serveStopTimeout)
	for time.Now().Before(deadline) {
		if _, running := pf.Holder(); !running {
			ui.Success("Server stopped (pid %d)", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	ui.Warning("Server did not stop within %s, killing it", serveStopTimeout)
	if err := pf.Signal(sigKILL()); err != nil {
		return fmt.Errorf("kill server (pid %d): %w", pid, err)
	}
	_ = os.Remove(pf.Path)
	return nil
}

func serveStatusRun() error {
	pf := pidFile()
	pid, running := pf.Holder()
	if !running {
		ui.Info("Server not running")
		return nil
	}
	ui.Success("Server running (pid %d) on port %d", pid, viper.GetInt("serve.port"))
	ui.Info("Log: %s", serveLogPath())
	return nil
}
