package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/faucetdb/schemer/internal/connector"
	"github.com/faucetdb/schemer/internal/model"
)

// Store persists connection profiles in a local SQLite database.
type Store struct {
	db *sqlx.DB
}

// NewStore creates a new profile store. Pass empty string for in-memory.
func NewStore(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "schemer.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open profile database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate profile database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const profileColumns = `id, name, label, driver, server, port, user_name, password,
	database_name, schema_name, params, created_at, updated_at`

// CreateProfile inserts a new profile. ID, CreatedAt and UpdatedAt are
// populated after a successful insert.
func (s *Store) CreateProfile(ctx context.Context, p *model.ConnectionProfile) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	applyProfileDefaults(p)

	const q = `INSERT INTO profiles
		(name, label, driver, server, port, user_name, password, database_name, schema_name, params,
		 created_at, updated_at)
		VALUES
		(:name, :label, :driver, :server, :port, :user_name, :password, :database_name, :schema_name, :params,
		 :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("profile %q: %w", p.Name, ErrProfileExists)
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get profile id: %w", err)
	}
	p.ID = id
	return nil
}

// GetProfileByName returns a profile by its unique name.
func (s *Store) GetProfileByName(ctx context.Context, name string) (*model.ConnectionProfile, error) {
	var p model.ConnectionProfile
	err := s.db.GetContext(ctx, &p, "SELECT "+profileColumns+" FROM profiles WHERE name = ?", name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get profile by name: %w", err)
	}
	return &p, nil
}

// ListProfiles returns all stored profiles ordered by name.
func (s *Store) ListProfiles(ctx context.Context) ([]model.ConnectionProfile, error) {
	profiles := []model.ConnectionProfile{}
	if err := s.db.SelectContext(ctx, &profiles, "SELECT "+profileColumns+" FROM profiles ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// UpdateProfile rewrites an existing profile, matched by name. UpdatedAt is
// refreshed automatically.
func (s *Store) UpdateProfile(ctx context.Context, p *model.ConnectionProfile) error {
	p.UpdatedAt = time.Now().UTC()
	applyProfileDefaults(p)

	const q = `UPDATE profiles SET
		label = :label, driver = :driver, server = :server, port = :port, user_name = :user_name,
		password = :password, database_name = :database_name, schema_name = :schema_name,
		params = :params, updated_at = :updated_at
		WHERE name = :name`

	result, err := s.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProfile removes a profile by name.
func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete profile rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SyncProfiles upserts profiles declared in the config file so they are
// reachable by name like stored ones.
func (s *Store) SyncProfiles(ctx context.Context, profiles []ProfileYAML) error {
	for _, py := range profiles {
		p := py.toModel()
		err := s.UpdateProfile(ctx, &p)
		if errors.Is(err, ErrNotFound) {
			err = s.CreateProfile(ctx, &p)
		}
		if err != nil {
			return fmt.Errorf("sync profile %q: %w", py.Name, err)
		}
	}
	return nil
}

func applyProfileDefaults(p *model.ConnectionProfile) {
	if p.Driver == "" {
		p.Driver = "mssql"
	}
	if p.Schema == "" {
		p.Schema = "dbo"
	}
}

// ConnectorConfig turns a stored profile into a connector configuration.
// Params is parsed as a URL query string; malformed input is an error.
func ConnectorConfig(p model.ConnectionProfile) (connector.Config, error) {
	cfg := connector.Config{
		Driver:   p.Driver,
		Server:   p.Server,
		Port:     p.Port,
		User:     p.User,
		Password: p.Password,
		Database: p.Database,
	}
	if p.Params == "" {
		return cfg, nil
	}
	values, err := url.ParseQuery(p.Params)
	if err != nil {
		return connector.Config{}, fmt.Errorf("profile %q: parse params: %w", p.Name, err)
	}
	cfg.Params = make(map[string]string, len(values))
	for k := range values {
		cfg.Params[k] = values.Get(k)
	}
	return cfg, nil
}
