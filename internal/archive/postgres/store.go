// Package postgres is the PostgreSQL implementation of archive.Archive.
package postgres

import (
	"context"
	"embed"
	"errors"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadline/leadline/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store archives lead records in PostgreSQL.
type Store struct {
	Pool *pgxpool.Pool
}

// Open opens a connection pool and runs migrations. dsn may be empty to use
// the DATABASE_URL env var.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		return nil, errors.New("postgres DSN or DATABASE_URL required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 20
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Store{Pool: pool}
	if err := s.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.Pool == nil {
		return nil
	}
	s.Pool.Close()
	return nil
}

// Migrate runs pending migrations (only those not already in schema_migrations).
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.Pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := s.Pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err == nil {
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				break
			}
			applied[v] = true
		}
		rows.Close()
	}

	type mig struct {
		version int
		sql     string
	}
	var migs []mig
	files, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		v, err := strconv.Atoi(strings.SplitN(strings.TrimSuffix(f.Name(), ".sql"), "_", 2)[0])
		if err != nil || applied[v] {
			continue
		}
		body, err := migrationsFS.ReadFile("migrations/" + f.Name())
		if err != nil {
			return err
		}
		migs = append(migs, mig{v, string(body)})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })

	for _, m := range migs {
		if _, err := s.Pool.Exec(ctx, m.sql); err != nil {
			return err
		}
		if _, err := s.Pool.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, m.version); err != nil {
			return err
		}
	}
	return nil
}

// SaveLead upserts a lead record keyed by session id.
func (s *Store) SaveLead(ctx context.Context, rec models.LeadRecord) error {
	_, err := s.Pool.Exec(ctx, `
INSERT INTO leads(session_id, conversation_type, name, email, phone, company, industry,
                  tier, total_score, is_qualified, message_count, reasons, started_at, ended_at)
VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
ON CONFLICT(session_id) DO UPDATE SET
  conversation_type=EXCLUDED.conversation_type,
  name=EXCLUDED.name, email=EXCLUDED.email, phone=EXCLUDED.phone,
  company=EXCLUDED.company, industry=EXCLUDED.industry,
  tier=EXCLUDED.tier, total_score=EXCLUDED.total_score,
  is_qualified=EXCLUDED.is_qualified, message_count=EXCLUDED.message_count,
  reasons=EXCLUDED.reasons, ended_at=EXCLUDED.ended_at`,
		rec.SessionID, rec.ConversationType, rec.Name, rec.Email, rec.Phone, rec.Company, rec.Industry,
		rec.Tier, rec.TotalScore, rec.IsQualified, rec.MessageCount,
		strings.Join(rec.Reasons, "\n"), rec.StartedAt.UTC(), rec.EndedAt.UTC())
	return err
}

// ListLeads returns archived leads, newest first, up to limit (0 = all).
func (s *Store) ListLeads(ctx context.Context, limit int) ([]models.LeadRecord, error) {
	q := `
SELECT session_id, conversation_type, name, email, phone, company, industry,
       tier, total_score, is_qualified, message_count, reasons, started_at, ended_at
FROM leads ORDER BY ended_at DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeadRecord
	for rows.Next() {
		var (
			rec                models.LeadRecord
			reasons            string
			startedAt, endedAt time.Time
		)
		if err := rows.Scan(&rec.SessionID, &rec.ConversationType, &rec.Name, &rec.Email, &rec.Phone,
			&rec.Company, &rec.Industry, &rec.Tier, &rec.TotalScore, &rec.IsQualified, &rec.MessageCount,
			&reasons, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		if reasons != "" {
			rec.Reasons = strings.Split(reasons, "\n")
		}
		rec.StartedAt = startedAt.UTC()
		rec.EndedAt = endedAt.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
