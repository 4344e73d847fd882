package repository

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type DB struct {
	db     *sqlx.DB
	driver string
}

// Open connects to driver (sqlite or postgres) and migrates the schema.
func Open(driver, dsn string) (*DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if driver == DriverSQLite {
		// sqlite serialises writers anyway, and every :memory: connection
		// would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &DB{
		db:     db,
		driver: driver,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func NewSQLiteDB(path string) (*DB, error) {
	return Open(DriverSQLite, path)
}

func (s *DB) migrate() error {
	blob := "BLOB"
	if s.driver == DriverPostgres {
		blob = "BYTEA"
	}

	// timestamps are unix milliseconds so both drivers compare them the same way
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS detections (
			id TEXT PRIMARY KEY,
			location_id TEXT NOT NULL,
			location_name TEXT NOT NULL,
			risk_level TEXT NOT NULL,
			risk_rank INTEGER NOT NULL,
			anomaly_level TEXT NOT NULL,
			confidence_score DOUBLE PRECISION NOT NULL,
			risk_score DOUBLE PRECISION NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			detection_json %s,
			timestamp BIGINT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_detections_location_timestamp ON detections(location_id, timestamp);
		CREATE INDEX IF NOT EXISTS idx_detections_risk_level ON detections(risk_level);
	`, blob)

	_, err := s.db.Exec(schema)
	return err
}

func (s *DB) Close() error {
	return s.db.Close()
}
