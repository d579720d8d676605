package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/faucetdb/schemer/internal/model"
)

// Config represents the top-level schemer configuration file.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Edit     EditConfig    `yaml:"edit"`
	MCP      MCPConfig     `yaml:"mcp"`
	Logging  LoggingConfig `yaml:"logging"`
	Profiles []ProfileYAML `yaml:"profiles"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit"` // requests per minute per client IP, 0 disables
	CORS            CORSConfig `yaml:"cors"`
}

// BodySizeBytes parses MaxBodySize ("512KB", "1MB", "1048576"). Empty or
// malformed values yield def.
func (s ServerConfig) BodySizeBytes(def int64) int64 {
	v := strings.ToUpper(strings.TrimSpace(s.MaxBodySize))
	if v == "" {
		return def
	}
	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(v, u.suffix) {
			v, mult = strings.TrimSpace(strings.TrimSuffix(v, u.suffix)), u.mult
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n * mult
}

// ShutdownDuration parses ShutdownTimeout, falling back to def.
func (s ServerConfig) ShutdownDuration(def time.Duration) time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// EditConfig controls how schema edits are generated and run.
type EditConfig struct {
	Schema  string `yaml:"schema"`
	Atomic  bool   `yaml:"atomic"`
	Timeout string `yaml:"timeout"`
	IDType  string `yaml:"id_type"`
}

// TimeoutDuration parses Timeout, falling back to def when it is empty or
// malformed.
func (e EditConfig) TimeoutDuration(def time.Duration) time.Duration {
	if e.Timeout == "" {
		return def
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"` // stdio or http
	Port      int    `yaml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProfileYAML declares a connection profile inline in the config file.
type ProfileYAML struct {
	Name     string `yaml:"name"`
	Label    string `yaml:"label,omitempty"`
	Driver   string `yaml:"driver,omitempty"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
	Schema   string `yaml:"schema,omitempty"`
	Params   string `yaml:"params,omitempty"`
}

func (p ProfileYAML) toModel() model.ConnectionProfile {
	return model.ConnectionProfile{
		Name:     p.Name,
		Label:    p.Label,
		Driver:   p.Driver,
		Server:   p.Server,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
		Schema:   p.Schema,
		Params:   p.Params,
	}
}

// LoadConfig reads and parses a YAML configuration file on top of the
// defaults. Environment variables referenced as ${VAR_NAME} in the file are
// expanded before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	for i, p := range cfg.Profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d: name is required", i)
		}
		if p.Server == "" {
			return nil, fmt.Errorf("profile %q: server is required", p.Name)
		}
	}
	return cfg, nil
}

// DefaultConfig returns a Config pre-filled with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			MaxBodySize:     "1MB",
			ShutdownTimeout: "30s",
			RateLimit:       120,
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "PUT", "DELETE"},
			},
		},
		Edit: EditConfig{
			Schema:  "dbo",
			Atomic:  true,
			Timeout: "30s",
			IDType:  "INT",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
