package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Database is a registered monitored PostgreSQL database.
// The password is accepted on registration and never serialized back out.
type Database struct {
	ID            uuid.UUID     `json:"id"`
	Name          string        `json:"name"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	DBName        string        `json:"dbname"`
	User          string        `json:"user"`
	Password      string        `json:"-"`
	SSLMode       string        `json:"sslmode"`
	AutonomyLevel AutonomyLevel `json:"autonomy_level"`
	CreatedAt     time.Time     `json:"created_at"`
}

// DSN returns the PostgreSQL connection string for the monitored database.
func (d *Database) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" +
		strconv.Itoa(d.Port) + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// DatabaseCreateRequest registers a new monitored database.
type DatabaseCreateRequest struct {
	Name          string        `json:"name"`
	Host          string        `json:"host"`
	Port          int           `json:"port,omitempty"`
	DBName        string        `json:"dbname"`
	User          string        `json:"user"`
	Password      string        `json:"password"`
	SSLMode       string        `json:"sslmode,omitempty"`
	AutonomyLevel AutonomyLevel `json:"autonomy_level,omitempty"`
}

// Validate validates the DatabaseCreateRequest.
func (r *DatabaseCreateRequest) Validate() error {
	if r.Name == "" {
		return ErrDatabaseNameRequired
	}
	if len(r.Name) < 3 || len(r.Name) > 63 {
		return ErrDatabaseNameInvalid
	}
	if r.Host == "" {
		return ErrDatabaseHostRequired
	}
	if r.User == "" {
		return ErrDatabaseUserRequired
	}
	if r.AutonomyLevel != "" && !r.AutonomyLevel.Valid() {
		return ErrInvalidAutonomyLevel
	}
	return nil
}

// ApplyDefaults applies default values to the create request.
func (r *DatabaseCreateRequest) ApplyDefaults() {
	if r.Port == 0 {
		r.Port = 5432
	}
	if r.DBName == "" {
		r.DBName = r.Name
	}
	if r.SSLMode == "" {
		r.SSLMode = "prefer"
	}
	if r.AutonomyLevel == "" {
		r.AutonomyLevel = DefaultAutonomyLevel
	}
}

// AutonomyUpdateRequest changes a database's autonomy level.
type AutonomyUpdateRequest struct {
	Level AutonomyLevel `json:"level"`
}

// Validate validates the AutonomyUpdateRequest.
func (r *AutonomyUpdateRequest) Validate() error {
	if !r.Level.Valid() {
		return ErrInvalidAutonomyLevel
	}
	return nil
}
