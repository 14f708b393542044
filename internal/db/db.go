package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver
	"imagecaster/internal/logging"
)

// DB is the global database connection.
var DB *sqlx.DB

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	key          TEXT PRIMARY KEY,
	content_type TEXT NOT NULL,
	body         BYTEA NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// InitDB connects to Postgres and makes sure the objects table exists.
func InitDB(dbURL string) error {
	if dbURL == "" {
		return fmt.Errorf("database url is not set")
	}

	conn, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create objects table: %w", err)
	}
	DB = conn

	logging.Info().Msg("Database connection established")
	return nil
}
