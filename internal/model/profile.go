package model

import "time"

// ConnectionProfile holds what is needed to reach one SQL Server instance.
// The database is optional; schema edits pick it per operation.
type ConnectionProfile struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Label     string    `json:"label" db:"label"`
	Driver    string    `json:"driver" db:"driver"` // mssql
	Server    string    `json:"server" db:"server"`
	Port      int       `json:"port,omitempty" db:"port"`
	User      string    `json:"user" db:"user_name"`
	Password  string    `json:"password,omitempty" db:"password"` // omitted in list output via redacted()
	Database  string    `json:"database,omitempty" db:"database_name"`
	Schema    string    `json:"schema" db:"schema_name"`
	Params    string    `json:"params,omitempty" db:"params"` // extra DSN query string, e.g. "encrypt=disable"
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Redacted returns a copy safe to print or serve.
func (p ConnectionProfile) Redacted() ConnectionProfile {
	if p.Password != "" {
		p.Password = "********"
	}
	return p
}
