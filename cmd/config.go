package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lift"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage lift configuration.

Running bare 'lift config' is the same as 'lift config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate renders config.yaml from the effective settings. Paths and
// the API key stay commented out so the defaults keep following $HOME.
const configTemplate = `# lift configuration
# See: lift config show (for effective values and sources)

# State/data directory (default: ~/.config/lift)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/lift/lift.db)
# db_path: {{ .DBPath }}

# Whose workouts commands act on (default: $USER)
owner: "{{ .Owner }}"

# Workout sessions
workout:
  # Persist after every set, not just at start and finish (default: true)
  autosave: {{ .Autosave }}

  # Abandon an untouched session after this long (default: 12h)
  stale_after: "{{ .StaleAfter }}"

  # Timeout for a single background save (default: 10s)
  save_timeout: "{{ .SaveTimeout }}"

# Rest timer
rest:
  # Length of 'lift workout rest' without an argument (default: 90)
  default_seconds: {{ .RestSeconds }}

# HTTP API
serve:
  port: {{ .Port }}

# Logging (stderr)
log:
  # debug, info, warn or error (default: warn)
  level: "{{ .LogLevel }}"
  # text or json (default: text)
  format: "{{ .LogFormat }}"

# Anthropic API, used by 'lift workout recap'
anthropic:
  # api_key: sk-ant-...
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir       string
	DBPath         string
	Owner          string
	Autosave       bool
	StaleAfter     string
	SaveTimeout    string
	RestSeconds    int
	Port           int
	LogLevel       string
	LogFormat      string
	AnthropicModel string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	data := configTemplateData{
		StateDir:       viper.GetString("state_dir"),
		DBPath:         viper.GetString("db_path"),
		Owner:          viper.GetString("owner"),
		Autosave:       viper.GetBool("workout.autosave"),
		StaleAfter:     viper.GetDuration("workout.stale_after").String(),
		SaveTimeout:    viper.GetDuration("workout.save_timeout").String(),
		RestSeconds:    viper.GetInt("rest.default_seconds"),
		Port:           viper.GetInt("serve.port"),
		LogLevel:       viper.GetString("log.level"),
		LogFormat:      viper.GetString("log.format"),
		AnthropicModel: viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("parse config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("render config: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKey is a setting shown by 'lift config show'. Check, when set,
// validates the effective value.
type configKey struct {
	Key    string
	Secret bool
	Check  func(key string) error
}

var configKeys = []configKey{
	{Key: "state_dir"},
	{Key: "db_path"},
	{Key: "owner", Check: checkNotEmpty},
	{Key: "workout.autosave"},
	{Key: "workout.stale_after", Check: checkPositiveDuration},
	{Key: "workout.save_timeout", Check: checkPositiveDuration},
	{Key: "rest.default_seconds", Check: checkRestSeconds},
	{Key: "serve.port", Check: checkPort},
	{Key: "log.level", Check: checkLogLevel},
	{Key: "log.format", Check: checkLogFormat},
	{Key: "anthropic.api_key", Secret: true},
	{Key: "anthropic.model"},
}

// envVar maps a config key to the environment variable that overrides it.
func envVar(key string) string {
	return "LIFT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func checkNotEmpty(key string) error {
	if strings.TrimSpace(viper.GetString(key)) == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

func checkPositiveDuration(key string) error {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fmt.Errorf("not a duration (e.g. 12h, 30s)")
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func checkRestSeconds(key string) error {
	if n := viper.GetInt(key); n <= 0 || n > 3600 {
		return fmt.Errorf("must be between 1 and 3600 seconds")
	}
	return nil
}

func checkPort(key string) error {
	if n := viper.GetInt(key); n <= 0 || n > 65535 {
		return fmt.Errorf("must be between 1 and 65535")
	}
	return nil
}

func checkLogLevel(key string) error {
	_, err := newLogger(io.Discard, viper.GetString(key), "text")
	return err
}

func checkLogFormat(key string) error {
	_, err := newLogger(io.Discard, "info", viper.GetString(key))
	return err
}

// configProblems returns one line per setting whose value is unusable.
func configProblems() []string {
	var problems []string
	for _, k := range configKeys {
		if k.Check == nil {
			continue
		}
		if err := k.Check(k.Key); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", k.Key, err))
		}
	}
	return problems
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	inFile := fileKeys(cfgPath)
	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret && val != "" {
			val = "********"
		}
		fmt.Fprintf(ui.Out, "  %-22s %v  %s\n", k.Key, val, detectSource(k.Key, inFile))
	}

	for _, p := range configProblems() {
		ui.Warning("%s", p)
	}
	return nil
}

// fileKeys returns the dotted keys set in the YAML file at path.
func fileKeys(path string) map[string]bool {
	keys := make(map[string]bool)
	data, err := os.ReadFile(path)
	if err != nil {
		return keys
	}
	var parsed map[string]any
	if yaml.Unmarshal(data, &parsed) == nil {
		flattenKeys("", parsed, keys)
	}
	return keys
}

func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(full, nested, result)
			continue
		}
		result[full] = true
	}
}

// detectSource reports whether key comes from the environment, the config
// file or the built-in default, in viper's order of precedence.
func detectSource(key string, inFile map[string]bool) string {
	if name := envVar(key); os.Getenv(name) != "" {
		return fmt.Sprintf("(env: %s)", name)
	}
	if inFile[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'lift config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	if err := editCmd.Run(); err != nil {
		return err
	}

	viper.SetConfigFile(cfgPath)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("config file no longer parses: %w", err)
	}
	for _, p := range configProblems() {
		ui.Warning("%s", p)
	}
	return nil
}
