// Command Cockpit runs the focus timer service and talks to it from the shell.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/Cockpit/internal/client"
	"github.com/BTreeMap/Cockpit/internal/ticker"
	"github.com/BTreeMap/Cockpit/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDirName is the state directory created under the user's home
	DefaultStateDirName = ".cockpit"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "cockpit.db"
	// DefaultConfigFileName is the profiles and settings file inside the state directory
	DefaultConfigFileName = "config.yaml"
	// DefaultScheduleDirName holds the per-day YAML plans inside the state directory
	DefaultScheduleDirName = "schedule"
	// DefaultLogLevel is used when neither the flag nor COCKPIT_LOG_LEVEL is set
	DefaultLogLevel = "debug"
)

func main() {
	cfg := loadEnvironmentConfig()
	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	StateDir     string
	ConfigPath   string
	ScheduleDir  string
	APIAddr      string
	DatabaseURL  string
	DBDSN        string
	TickInterval time.Duration
	LogLevel     string
	ServerURL    string

	NotifyWebhook string
	NotifyCommand string
}

// defaultStateDir is ~/.cockpit, or ./.cockpit when there is no home directory.
func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultStateDirName
	}
	return filepath.Join(home, DefaultStateDirName)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:     os.Getenv("COCKPIT_STATE_DIR"),
		ConfigPath:   os.Getenv("COCKPIT_CONFIG"),
		ScheduleDir:  os.Getenv("COCKPIT_SCHEDULE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		TickInterval: util.ParseDurationEnv("COCKPIT_TICK_INTERVAL", ticker.DefaultInterval),
		LogLevel:     os.Getenv("COCKPIT_LOG_LEVEL"),
		ServerURL:    os.Getenv("COCKPIT_URL"),

		NotifyWebhook: os.Getenv("COCKPIT_NOTIFY_WEBHOOK"),
		NotifyCommand: os.Getenv("COCKPIT_NOTIFY_COMMAND"),
	}

	if config.StateDir == "" {
		config.StateDir = defaultStateDir()
		slog.Debug("No COCKPIT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.ConfigPath == "" {
		config.ConfigPath = filepath.Join(config.StateDir, DefaultConfigFileName)
	}
	if config.ScheduleDir == "" {
		config.ScheduleDir = filepath.Join(config.StateDir, DefaultScheduleDirName)
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	if config.ServerURL == "" {
		config.ServerURL = client.DefaultURL
	}

	// Run history goes to DATABASE_URL when set, otherwise SQLite in the state directory
	config.DBDSN = config.DatabaseURL
	if config.DBDSN == "" {
		config.DBDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DBDSN)
	}

	slog.Debug("environment variables loaded",
		"COCKPIT_STATE_DIR", config.StateDir,
		"COCKPIT_CONFIG", config.ConfigPath,
		"COCKPIT_SCHEDULE_DIR", config.ScheduleDir,
		"API_ADDR", config.APIAddr,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"COCKPIT_TICK_INTERVAL", config.TickInterval,
		"COCKPIT_LOG_LEVEL", config.LogLevel,
		"COCKPIT_URL", config.ServerURL,
		"COCKPIT_NOTIFY_WEBHOOK_SET", config.NotifyWebhook != "",
		"COCKPIT_NOTIFY_COMMAND_SET", config.NotifyCommand != "")

	return config
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelDebug, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// initializeLogger installs a text handler at the given level. Logs go to w
// so command output on stdout stays machine readable.
func initializeLogger(w io.Writer, level string) error {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
