// Package sqlite is the SQLite implementation of archive.Archive.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/leadline/leadline/pkg/models"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store archives lead records in a SQLite database.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the archive at home/protected/leads.sqlite and runs
// migrations.
func Open(home string) (*Store, error) {
	dbPath := filepath.Join(home, "protected", "leads.sqlite")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{DB: db}
	if err := s.initPragmas(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.Migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) initPragmas(ctx context.Context) error {
	for _, p := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`PRAGMA foreign_keys=ON`,
	} {
		if _, err := s.DB.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Migrate runs pending migrations (only those not already in schema_migrations).
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at INTEGER NOT NULL
)`); err != nil {
		return err
	}

	applied := make(map[int]bool)
	rows, err := s.DB.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err == nil {
		for rows.Next() {
			var v int
			if err := rows.Scan(&v); err != nil {
				break
			}
			applied[v] = true
		}
		_ = rows.Close()
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
		if _, err := s.DB.ExecContext(ctx, m.sql); err != nil {
			return err
		}
		if _, err := s.DB.ExecContext(ctx, `INSERT INTO schema_migrations(version, applied_at) VALUES(?, ?)`,
			m.version, time.Now().UTC().Unix()); err != nil {
			return err
		}
	}
	return nil
}

// SaveLead upserts a lead record keyed by session id; a session archived
// twice keeps the latest snapshot.
func (s *Store) SaveLead(ctx context.Context, rec models.LeadRecord) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO leads(session_id, conversation_type, name, email, phone, company, industry,
                  tier, total_score, is_qualified, message_count, reasons, started_at, ended_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  conversation_type=excluded.conversation_type,
  name=excluded.name, email=excluded.email, phone=excluded.phone,
  company=excluded.company, industry=excluded.industry,
  tier=excluded.tier, total_score=excluded.total_score,
  is_qualified=excluded.is_qualified, message_count=excluded.message_count,
  reasons=excluded.reasons, ended_at=excluded.ended_at`,
		rec.SessionID, rec.ConversationType, rec.Name, rec.Email, rec.Phone, rec.Company, rec.Industry,
		rec.Tier, rec.TotalScore, boolToInt(rec.IsQualified), rec.MessageCount,
		strings.Join(rec.Reasons, "\n"), rec.StartedAt.UTC().Unix(), rec.EndedAt.UTC().Unix())
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
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.LeadRecord
	for rows.Next() {
		var (
			rec                models.LeadRecord
			qualified          int
			reasons            string
			startedAt, endedAt int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.ConversationType, &rec.Name, &rec.Email, &rec.Phone,
			&rec.Company, &rec.Industry, &rec.Tier, &rec.TotalScore, &qualified, &rec.MessageCount,
			&reasons, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		rec.IsQualified = qualified != 0
		if reasons != "" {
			rec.Reasons = strings.Split(reasons, "\n")
		}
		rec.StartedAt = time.Unix(startedAt, 0).UTC()
		rec.EndedAt = time.Unix(endedAt, 0).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
