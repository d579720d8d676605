package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/connector/mssql"
	"github.com/faucetdb/schemer/internal/service"
	"github.com/faucetdb/schemer/internal/session"
)

// dataDir holds the --data-dir persistent flag value (set on root command).
var dataDir string

// resolveDataDir returns the data directory from --data-dir flag,
// SCHEMER_DATA_DIR env var, or ~/.schemer as fallback.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	if envDir := os.Getenv("SCHEMER_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".schemer")
}

// loadConfig reads the config file viper found, if any, then applies
// SCHEMER_* environment overrides and bound flags.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if viper.IsSet("server.host") {
		cfg.Server.Host = viper.GetString("server.host")
	}
	if viper.IsSet("server.port") {
		cfg.Server.Port = viper.GetInt("server.port")
	}
	if viper.IsSet("edit.schema") {
		cfg.Edit.Schema = viper.GetString("edit.schema")
	}
	if viper.IsSet("edit.atomic") {
		cfg.Edit.Atomic = viper.GetBool("edit.atomic")
	}
	if viper.IsSet("edit.timeout") {
		cfg.Edit.Timeout = viper.GetString("edit.timeout")
	}
	if viper.IsSet("edit.id_type") {
		cfg.Edit.IDType = viper.GetString("edit.id_type")
	}
	if viper.IsSet("mcp.transport") {
		cfg.MCP.Transport = viper.GetString("mcp.transport")
	}
	if viper.IsSet("mcp.port") {
		cfg.MCP.Port = viper.GetInt("mcp.port")
	}
	if viper.IsSet("logging.level") {
		cfg.Logging.Level = viper.GetString("logging.level")
	}
	if viper.IsSet("logging.format") {
		cfg.Logging.Format = viper.GetString("logging.format")
	}
	return cfg, nil
}

// newLogger builds the process logger. Logs go to stderr so command output
// on stdout stays machine-readable.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// newRegistry creates a connector registry with the SQL Server driver
// registered under both of its common names.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("mssql", mssql.New)
	registry.RegisterDriver("sqlserver", mssql.New)
	return registry
}

// sessionOptions maps the edit settings onto session options.
func sessionOptions(cfg config.EditConfig) session.Options {
	return session.Options{
		Atomic:  cfg.Atomic,
		Timeout: cfg.TimeoutDuration(session.DefaultTimeout),
	}
}

// app bundles what every command that talks to a server needs.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *config.Store
	registry *connector.Registry
	bench    *service.Workbench
}

// openApp loads configuration, opens the profile store, upserts the
// profiles declared in the config file and builds the workbench.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Logging)

	store, err := config.NewStore(resolveDataDir())
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	if err := store.SyncProfiles(ctx, cfg.Profiles); err != nil {
		store.Close()
		return nil, fmt.Errorf("sync config profiles: %w", err)
	}

	registry := newRegistry()
	bench := service.NewWorkbench(service.Config{
		Profiles: store,
		Registry: registry,
		Options:  sessionOptions(cfg.Edit),
		Logger:   logger,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		registry: registry,
		bench:    bench,
	}, nil
}

func (a *app) Close() {
	a.registry.CloseAll()
	a.store.Close()
}

// session opens a session on profile, selecting database when given.
func (a *app) session(ctx context.Context, profile, database string) (*session.Session, error) {
	if profile == "" {
		return nil, fmt.Errorf("--profile is required")
	}
	return a.bench.Session(ctx, profile, database)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
