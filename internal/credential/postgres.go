package credential

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// pgUniqueViolation は一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

// gooseMu はgooseのグローバル設定（BaseFS、Dialect）を保護する。
var gooseMu sync.Mutex

// PostgresStore はPostgreSQLをバックエンドとするStore。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres はPostgreSQLストアを開き、gooseでマイグレーションを適用する。
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("PostgreSQLのDSNが指定されていません")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQLの接続に失敗: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("PostgreSQLへの疎通確認に失敗: %w", err)
	}

	if err := migratePostgres(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// migratePostgres は埋め込みのマイグレーションを適用する。
func migratePostgres(ctx context.Context, db *sql.DB) error {
	sub, err := fs.Sub(migrationsFS, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("マイグレーションファイルの読み込みに失敗: %w", err)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(sub)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("gooseのダイアレクト設定に失敗: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("PostgreSQLのマイグレーションに失敗: %w", err)
	}
	return nil
}

// Create は利用者を新規登録する。
func (s *PostgresStore) Create(ctx context.Context, identity Identity) error {
	createdAt := identity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, is_admin, created_at) VALUES ($1, $2, $3, $4)",
		identity.Email, identity.PasswordHash, identity.IsAdmin, createdAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("利用者の登録に失敗: %w", err)
	}
	return nil
}

// FindByEmail はメールアドレスで利用者を検索する。
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx,
		"SELECT email, password_hash, is_admin, created_at FROM users WHERE email = $1",
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
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
