package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/uploadmesh/pkg/migration"
)

// SQLiteStore はSQLiteをバックエンドとするStore。
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite はSQLiteストアを開き、マイグレーションを適用する。
// SQLiteは書き込みを直列化するため接続数を1に制限する。
func NewSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "file:auth.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("SQLiteの接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := migration.Run(ctx, db, migrationsFS, "migrations/sqlite"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("SQLiteのマイグレーションに失敗: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create は利用者を新規登録する。
func (s *SQLiteStore) Create(ctx context.Context, identity Identity) error {
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, is_admin, created_at) VALUES (?, ?, ?, ?)",
		identity.Email, identity.PasswordHash, identity.IsAdmin, createdAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("利用者の登録に失敗: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスで利用者を検索する。
func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx,
		"SELECT email, password_hash, is_admin, created_at FROM users WHERE email = ?",
		email,
	).Scan(&identity.Email, &identity.PasswordHash, &identity.IsAdmin, &identity.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("利用者の検索に失敗: %w", err)
	}
	return identity, nil
}

// Close は接続を閉じる。
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUniqueViolation は一意制約違反かどうかを判定する。
func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	default:
		return false
	}
}
