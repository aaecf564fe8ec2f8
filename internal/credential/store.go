package credential

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"
)

//go:embed migrations
var migrationsFS embed.FS

var (
	// ErrNotFound は該当するメールアドレスの利用者が存在しないことを表す。
	ErrNotFound = errors.New("利用者が見つかりません")
	// ErrDuplicate は同じメールアドレスの利用者が既に存在することを表す。
	ErrDuplicate = errors.New("メールアドレスは既に登録されています")
)

// Identity は保存された利用者の認証情報。
// パスワードハッシュを含むためレスポンスに直接シリアライズしてはならない。
type Identity struct {
	// Email は利用者の一意な識別子。大文字小文字を区別する。
	Email string `json:"-"`
	// PasswordHash はbcryptで生成したパスワードダイジェスト。
	PasswordHash string `json:"-"`
	// IsAdmin は管理者フラグ。登録時は常にfalse。
	IsAdmin bool `json:"-"`
	// CreatedAt は登録日時。
	CreatedAt time.Time `json:"-"`
}

// Store は認証情報の永続化を担う。
type Store interface {
	// Create は利用者を新規登録する。既に存在する場合は ErrDuplicate を返す。
	Create(ctx context.Context, identity Identity) error
	// FindByEmail はメールアドレスで利用者を検索する。存在しない場合は ErrNotFound を返す。
	FindByEmail(ctx context.Context, email string) (Identity, error)
	// Close は接続を閉じる。
	Close() error
}

// Driver はストアのバックエンド種別。
type Driver string

const (
	// DriverSQLite はSQLite（modernc.org/sqlite）を使う。
	DriverSQLite Driver = "sqlite"
	// DriverPostgres はPostgreSQL（pgx）を使う。
	DriverPostgres Driver = "postgres"
)

// Open はドライバ種別に応じたストアを開き、スキーマを最新化する。
func Open(ctx context.Context, driver Driver, dsn string) (Store, error) {
	switch driver {
	case DriverSQLite, "":
		return NewSQLite(ctx, dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("未対応のDBドライバです: %q", driver)
	}
}
