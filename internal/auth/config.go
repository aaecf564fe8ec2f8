package auth

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/uploadmesh/internal/credential"
	"github.com/nao1215/uploadmesh/pkg/token"
)

// Config は認証サービスの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// JWTSecret はトークン署名用の秘密鍵。必須。
	JWTSecret string
	// TokenTTL はトークンの有効期間。
	TokenTTL time.Duration
	// DBDriver は認証情報ストアのバックエンド（sqlite | postgres）。
	DBDriver credential.Driver
	// DBDSN はデータベースの接続文字列。
	DBDSN string
	// BcryptCost はパスワードハッシュのコスト。
	BcryptCost int
	// LogLevel はログレベル。
	LogLevel string
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
}

// LoadConfig は環境変数から設定を読み込む。
// JWT_SECRETが未設定の場合は起動を中止するためエラーを返す。
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:       getEnvOr("PORT", "8000"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		TokenTTL:   token.DefaultValidity,
		DBDriver:   credential.Driver(getEnvOr("DB_DRIVER", string(credential.DriverSQLite))),
		DBDSN:      os.Getenv("DB_DSN"),
		BcryptCost: bcrypt.DefaultCost,
		LogLevel:   getEnvOr("LOG_LEVEL", "info"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRETが設定されていません")
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("TOKEN_TTLが不正です: %q", v)
		}
		cfg.TokenTTL = ttl
	}

	if v := os.Getenv("BCRYPT_COST"); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("BCRYPT_COSTが不正です: %q", v)
		}
		cfg.BcryptCost = cost
	}

	if v := os.Getenv("FRONTEND_URL"); v != "" {
		cfg.AllowedOrigins = []string{v}
	}
	return cfg, nil
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
