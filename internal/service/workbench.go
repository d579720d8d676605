// Package service builds schema sessions for named connection profiles. It
// is shared by the HTTP API and the MCP server, which both address a
// server by profile name on every call.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/faucetdb/schemer/internal/config"
	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/connector/mssql"
	"github.com/faucetdb/schemer/internal/ddl"
	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/session"
)

// ProfileSource looks up stored connection profiles. *config.Store
// satisfies it.
type ProfileSource interface {
	GetProfileByName(ctx context.Context, name string) (*model.ConnectionProfile, error)
}

// ReaderFunc builds a catalog reader for one schema.
type ReaderFunc func(schema string) session.Reader

// Config holds the collaborators of a Workbench.
type Config struct {
	Profiles ProfileSource
	Registry *connector.Registry
	// NewReader defaults to the SQL Server catalog reader.
	NewReader ReaderFunc
	Options   session.Options
	Logger    *slog.Logger
}

// Workbench hands out sessions. Sessions created by one Workbench share a
// lock set, so concurrent requests never interleave edits to the same
// table.
type Workbench struct {
	profiles  ProfileSource
	registry  *connector.Registry
	newReader ReaderFunc
	opts      session.Options
	locks     *session.Locks
	logger    *slog.Logger
}

// NewWorkbench creates a Workbench from cfg.
func NewWorkbench(cfg Config) *Workbench {
	newReader := cfg.NewReader
	if newReader == nil {
		newReader = func(schema string) session.Reader { return mssql.NewCatalog(schema) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Workbench{
		profiles:  cfg.Profiles,
		registry:  cfg.Registry,
		newReader: newReader,
		opts:      cfg.Options,
		locks:     session.NewLocks(),
		logger:    logger,
	}
}

// Session returns a new session for profile with database selected. An
// empty database selects the profile's default. Unknown profiles yield an
// error wrapping config.ErrNotFound.
func (w *Workbench) Session(ctx context.Context, profile, database string) (*session.Session, error) {
	p, err := w.profiles.GetProfileByName(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", profile, err)
	}

	cfg, err := config.ConnectorConfig(*p)
	if err != nil {
		return nil, err
	}
	// Re-resolve on every call so edits to the stored profile take effect
	// without a restart.
	if err := w.registry.Connect(p.Name, cfg); err != nil {
		return nil, err
	}
	dialer, err := w.registry.Get(p.Name)
	if err != nil {
		return nil, err
	}

	s := session.New(session.Config{
		Dialer:    dialer,
		Reader:    w.newReader(p.Schema),
		Generator: ddl.New(p.Schema),
		Options:   w.opts,
		Locks:     w.locks,
		Logger:    w.logger.With("profile", p.Name),
	})
	if database == "" {
		database = p.Database
	}
	s.Use(database)
	return s, nil
}

// Check opens and closes one connection for every profile resolved so far
// and reports the failures by profile name.
func (w *Workbench) Check(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, name := range w.registry.ListProfiles() {
		d, err := w.registry.Get(name)
		if err != nil {
			results[name] = err
			continue
		}
		conn, err := d.Open(ctx, "")
		if err != nil {
			results[name] = err
			continue
		}
		conn.Close()
		results[name] = nil
	}
	return results
}
