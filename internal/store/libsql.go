package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/attackchain/pkg/schema"
)

// LibSQLStore implements the ChainStore interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database and returns a store. dbPath is
// either a DSN the driver understands ("file:", "libsql://", "http(s)://")
// or a plain filesystem path, which is opened as a local file.
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", libsqlDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// libsqlDSN prefixes a bare path with "file:".
func libsqlDSN(dbPath string) string {
	for _, scheme := range []string{"file:", "libsql://", "http://", "https://"} {
		if strings.HasPrefix(dbPath, scheme) {
			return dbPath
		}
	}
	return "file:" + dbPath
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Chains ---

// SaveChain upserts the chain row and appends a revision holding the same
// document, in one transaction. CreatedAt is kept across saves.
func (s *LibSQLStore) SaveChain(ctx context.Context, rec *ChainRecord) error {
	if rec == nil || rec.Document == nil {
		return schema.NewError(schema.ErrCodeValidation, "chain record has no document")
	}
	if rec.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "chain record has no id")
	}
	doc, err := json.Marshal(rec.Document)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO chains (id, name, description, document, node_count, edge_count, total_minutes, risk_level, verdict, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name=excluded.name, description=excluded.description, document=excluded.document,
		   node_count=excluded.node_count, edge_count=excluded.edge_count, total_minutes=excluded.total_minutes,
		   risk_level=excluded.risk_level, verdict=excluded.verdict, updated_at=excluded.updated_at`,
		rec.ID, rec.Name, nullStr(rec.Description), string(doc),
		rec.NodeCount, rec.EdgeCount, rec.TotalMinutes, string(rec.RiskLevel), string(rec.Verdict),
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert chain: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM chain_revisions WHERE chain_id = ?`, rec.ID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("get next revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chain_revisions (chain_id, sequence, document, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, seq, string(doc), nullStr(rec.Reason), now,
	); err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chain: %w", err)
	}
	return nil
}

const chainColumns = `id, name, description, document, node_count, edge_count, total_minutes, risk_level, verdict, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChain(row rowScanner) (*ChainRecord, error) {
	rec := &ChainRecord{}
	var (
		description   sql.NullString
		docJSON       string
		risk, verdict string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &description, &docJSON, &rec.NodeCount, &rec.EdgeCount,
		&rec.TotalMinutes, &risk, &verdict, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Description = description.String
	rec.RiskLevel = schema.Severity(risk)
	rec.Verdict = schema.Verdict(verdict)
	rec.Document = &schema.ChainDocument{}
	if err := json.Unmarshal([]byte(docJSON), rec.Document); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return rec, nil
}

func (s *LibSQLStore) GetChain(ctx context.Context, id string) (*ChainRecord, error) {
	rec, err := scanChain(s.db.QueryRowContext(ctx,
		`SELECT `+chainColumns+` FROM chains WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("chain", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListChains returns chains matching filter, most recently updated first.
func (s *LibSQLStore) ListChains(ctx context.Context, filter ChainFilter) ([]*ChainRecord, error) {
	var where []string
	var args []any

	if filter.NameContains != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(filter.NameContains)+"%")
	}
	if filter.RiskLevel != "" {
		where = append(where, "risk_level = ?")
		args = append(args, string(filter.RiskLevel))
	}
	if filter.Verdict != "" {
		where = append(where, "verdict = ?")
		args = append(args, string(filter.Verdict))
	}

	query := "SELECT " + chainColumns + " FROM chains"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY updated_at DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chains []*ChainRecord
	for rows.Next() {
		rec, err := scanChain(rows)
		if err != nil {
			return nil, err
		}
		chains = append(chains, rec)
	}
	return chains, rows.Err()
}

func (s *LibSQLStore) DeleteChain(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chain_revisions WHERE chain_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM chains WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := checkRowsAffected(res, "chain", id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Revisions ---

// ListRevisions returns every revision of a chain ordered by sequence.
// A gap in the sequence is reported as a store error.
func (s *LibSQLStore) ListRevisions(ctx context.Context, chainID string) ([]*Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chain_id, sequence, document, reason, created_at FROM chain_revisions
		 WHERE chain_id = ? ORDER BY sequence ASC`, chainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revs []*Revision
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		if want := int64(len(revs) + 1); rev.Sequence != want {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"revision gap in chain %s: expected %d, got %d", chainID, want, rev.Sequence)
		}
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

func (s *LibSQLStore) GetRevision(ctx context.Context, chainID string, sequence int64) (*Revision, error) {
	rev, err := scanRevision(s.db.QueryRowContext(ctx,
		`SELECT id, chain_id, sequence, document, reason, created_at FROM chain_revisions
		 WHERE chain_id = ? AND sequence = ?`, chainID, sequence))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("revision", fmt.Sprintf("%s#%d", chainID, sequence))
	}
	if err != nil {
		return nil, err
	}
	return rev, nil
}

func scanRevision(row rowScanner) (*Revision, error) {
	rev := &Revision{}
	var (
		docJSON string
		reason  sql.NullString
	)
	if err := row.Scan(&rev.ID, &rev.ChainID, &rev.Sequence, &docJSON, &reason, &rev.CreatedAt); err != nil {
		return nil, err
	}
	rev.Reason = reason.String
	rev.Document = &schema.ChainDocument{}
	if err := json.Unmarshal([]byte(docJSON), rev.Document); err != nil {
		return nil, fmt.Errorf("unmarshal revision document: %w", err)
	}
	return rev, nil
}

// --- helpers ---

func storeNotFound(resource, id string) *schema.ChainError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ ChainStore = (*LibSQLStore)(nil)
