package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/dkeye/callmatch/internal/domain"
)

// Postgres reads display names from the profiles table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping profile db: %w", err)
	}
	return db, nil
}

func (p *Postgres) DisplayName(ctx context.Context, pid domain.ParticipantID) (string, error) {
	const query = `SELECT display_name FROM profiles WHERE participant_id = $1`
	var name string
	if err := p.db.QueryRowContext(ctx, query, string(pid)).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query profile %s: %w", pid, err)
	}
	return name, nil
}
