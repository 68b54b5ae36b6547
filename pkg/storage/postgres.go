package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements DocumentStore on a single key/document table.
// The whole JSON document lives in one JSONB column, preserving the
// full-document read-modify-write semantics of the file backend.
type PostgresStore struct {
	db        *sql.DB
	tableName string
}

// NewPostgresStore initializes PostgreSQL storage.
// connStr: connection string
// tablePrefix: table prefix (defaults to "relay_") -> resulting table is prefix + "documents"
func NewPostgresStore(connStr string, tablePrefix string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if tablePrefix == "" {
		tablePrefix = "relay_"
	}
	tableName := tablePrefix + "documents"

	store := &PostgresStore{
		db:        db,
		tableName: tableName,
	}

	if err := store.initTable(); err != nil {
		return nil, err
	}

	return store, nil
}

// initTable automatically creates the document table
func (p *PostgresStore) initTable() error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		doc_key VARCHAR(255) PRIMARY KEY,
		body JSONB NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`, p.tableName)
	_, err := p.db.Exec(query)
	return err
}

func (p *PostgresStore) Load(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	query := fmt.Sprintf("SELECT body FROM %s WHERE doc_key = $1", p.tableName)
	err := p.db.QueryRowContext(ctx, query, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (p *PostgresStore) Save(ctx context.Context, key string, doc []byte) error {
	// Upsert using Postgres ON CONFLICT syntax
	query := fmt.Sprintf(`
	INSERT INTO %s (doc_key, body, updated_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (doc_key)
	DO UPDATE SET body = EXCLUDED.body, updated_at = NOW();
	`, p.tableName)
	_, err := p.db.ExecContext(ctx, query, key, doc)
	return err
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
