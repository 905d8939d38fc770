package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/store/migrations"
)

// SQLiteStore implements PendingStore on a single SQLite database file.
// Items live in their own table keyed by (submission_id, position) so the
// arrival order survives a round trip.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface check.
var _ PendingStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies all
// pending migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("SQLite store ready")
	return &SQLiteStore{db: db}, nil
}

// Migrate applies the embedded goose migrations to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Version reports the schema version recorded by goose.
func (s *SQLiteStore) Version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, s.db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Create(ctx context.Context, sub *Submission) (int64, error) {
	if err := validate(sub); err != nil {
		return 0, err
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (origin_chat_id, submitter_id, submitter_name, group_key, caption, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.OriginChatID, sub.SubmitterID, sub.SubmitterName, sub.GroupKey, sub.Caption, sub.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read submission id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO submission_items (submission_id, position, ref, kind) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare item insert: %w", err)
	}
	defer stmt.Close()
	for i, it := range sub.Items {
		if _, err := stmt.ExecContext(ctx, id, i, it.Ref, string(it.Kind)); err != nil {
			return 0, fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit submission: %w", err)
	}

	sub.ID = id
	log.Debug().Int64("submissionId", id).Int("items", len(sub.Items)).Msg("Submission persisted to SQLite")
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*Submission, error) {
	sub := &Submission{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT origin_chat_id, submitter_id, submitter_name, group_key, caption, created_at
		 FROM submissions WHERE id = ?`, id).
		Scan(&sub.OriginChatID, &sub.SubmitterID, &sub.SubmitterName, &sub.GroupKey, &sub.Caption, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select submission %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT ref, kind FROM submission_items WHERE submission_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("select items for %d: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var it MediaItem
		var kind string
		if err := rows.Scan(&it.Ref, &kind); err != nil {
			return nil, fmt.Errorf("scan item for %d: %w", id, err)
		}
		it.Kind = MediaKind(kind)
		sub.Items = append(sub.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items for %d: %w", id, err)
	}
	return sub, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM submission_items WHERE submission_id = ?`, id); err != nil {
		return fmt.Errorf("delete items for %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM submissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete submission %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %d: %w", id, err)
	}

	log.Debug().Int64("submissionId", id).Msg("Submission deleted from SQLite")
	return nil
}
