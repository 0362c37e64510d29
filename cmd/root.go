package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/lift/internal/lock"
	"github.com/joescharf/lift/internal/models"
	"github.com/joescharf/lift/internal/output"
	"github.com/joescharf/lift/internal/store"
	"github.com/joescharf/lift/internal/workout"
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *slog.Logger
	dataStore store.Store
	manager   *workout.Manager

	verbose   bool
	dryRun    bool
	ownerFlag string
)

var rootCmd = &cobra.Command{
	Use:   "lift",
	Short: "Lift - track live strength workouts",
	Long: `lift runs a strength workout set by set: it tracks the current
exercise, rest timers and totals, and keeps a history of past sessions.
The same session can be driven from the CLI, the HTTP API or an MCP client.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Workout owner (default from config)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/lift/config.yaml)")
}

func initConfig() {
	var configDir string
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		configDir = filepath.Dir(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir = filepath.Join(home, ".config", "lift")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// A .env beside the config file can hold secrets such as
	// LIFT_ANTHROPIC_API_KEY. Variables already in the environment win.
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	viper.SetEnvPrefix("LIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func setDefaults() {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "lift")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "lift.db"))
	viper.SetDefault("owner", defaultOwner())
	viper.SetDefault("workout.autosave", true)
	viper.SetDefault("workout.stale_after", "12h")
	viper.SetDefault("workout.save_timeout", "10s")
	viper.SetDefault("rest.default_seconds", 90)
	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("log.level", "warn")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
}

func defaultOwner() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "default"
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	l, err := newLogger(os.Stderr, level, viper.GetString("log.format"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v; using defaults\n", err)
		l, _ = newLogger(os.Stderr, "warn", "text")
	}
	logger = l
	slog.SetDefault(logger)

	// Store and manager are opened lazily so config/version commands
	// run without a database.
}

// newLogger builds the slog logger from the log.level and log.format settings.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log.level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log.format %q (want text or json)", format)
	}
}

// rootRun handles `lift` with no subcommand: show the workout in progress,
// or help when there is none.
func rootRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return cmd.Help()
	}
	w, err := s.LoadActiveWorkout(context.Background(), currentOwner())
	if err != nil || w == nil {
		return cmd.Help()
	}
	printLiveWorkout(w)
	return nil
}

// currentOwner returns the owner whose workouts commands act on.
func currentOwner() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	return viper.GetString("owner")
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getManager returns the shared session manager. In dry-run mode sessions
// are loaded normally but never written back.
func getManager() (*workout.Manager, error) {
	if manager != nil {
		return manager, nil
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}

	var p workout.Persister = s
	if dryRun {
		p = discardSaves{s}
	}
	manager = workout.NewManager(s, workout.Options{
		Persister:   p,
		Logger:      logger,
		Autosave:    viper.GetBool("workout.autosave"),
		SaveTimeout: viper.GetDuration("workout.save_timeout"),
	})
	return manager, nil
}

// discardSaves loads workouts from the wrapped persister and drops writes.
type discardSaves struct {
	workout.Persister
}

func (discardSaves) SaveWorkout(context.Context, *models.WorkoutSession) error { return nil }

// ownerLock returns the cross-process lock guarding owner's workout.
func ownerLock(owner string) *lock.Lock {
	return lock.New(viper.GetString("state_dir"), owner)
}

// acquireOwnerLock takes the owner's lock and returns its release func.
func acquireOwnerLock(owner string) (func(), error) {
	l := ownerLock(owner)
	if err := l.Acquire(); err != nil {
		if errors.Is(err, lock.ErrHeld) {
			return nil, fmt.Errorf("%w; stop 'lift serve' or 'lift mcp', or drive the workout through it", err)
		}
		return nil, err
	}
	return func() { _ = l.Release() }, nil
}
