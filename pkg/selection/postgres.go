package selection

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/spillinova/github-actions-dashboard/pkg/models"
)

// PostgresStore persists selections in Postgres so they survive restarts.
// The ON CONFLICT clause enforces the same de-duplication invariant the
// memory store guards with its mutex.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to Postgres and ensures the selections table
// exists.
func NewPostgresStore(host, port, user, password, dbname string) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	if _, err := db.Exec(
		`CREATE TABLE IF NOT EXISTS selected_repositories (
            id SERIAL PRIMARY KEY,
            owner TEXT NOT NULL,
            name TEXT NOT NULL,
            added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            UNIQUE (owner, name)
        )`,
	); err != nil {
		return nil, fmt.Errorf("error creating selections table: %v", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Add(owner, name string) ([]models.SelectionEntry, error) {
	_, err := s.db.Exec(
		`INSERT INTO selected_repositories (owner, name)
         VALUES ($1, $2)
         ON CONFLICT (owner, name) DO NOTHING`,
		owner, name,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting selection: %v", err)
	}
	return s.List()
}

func (s *PostgresStore) List() ([]models.SelectionEntry, error) {
	rows, err := s.db.Query(
		`SELECT owner, name FROM selected_repositories ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying selections: %v", err)
	}
	defer rows.Close()

	var entries []models.SelectionEntry
	for rows.Next() {
		var owner, name string
		if err := rows.Scan(&owner, &name); err != nil {
			return nil, fmt.Errorf("error scanning selection row: %v", err)
		}
		entries = append(entries, models.SelectionEntry{
			ID:    Key(owner, name),
			Owner: owner,
			Name:  name,
		})
	}
	return entries, rows.Err()
}

// Close releases the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
