// Package store is the Persister (§4.5): the only component that owns a database
// handle, executing batches transactionally and returning them with identifiers
// back-filled.
package store

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Open connects to the Postgres database at dsn and verifies connectivity,
// following the teacher's InitDB style: explicit pool sizing and a startup ping.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	log.Println("[store] connected to database")
	return db, nil
}
