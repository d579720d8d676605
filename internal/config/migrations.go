package config

import (
	"fmt"
	"strings"
)

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			driver TEXT NOT NULL DEFAULT 'mssql',
			server TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 0,
			user_name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			database_name TEXT NOT NULL DEFAULT '',
			schema_name TEXT NOT NULL DEFAULT 'dbo',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// v2: extra DSN query parameters (encrypt, TrustServerCertificate, ...)
		`ALTER TABLE profiles ADD COLUMN params TEXT NOT NULL DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ALTER TABLE ADD COLUMN fails on re-run once the column exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
