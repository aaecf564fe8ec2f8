package auth

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/uploadmesh/internal/credential"
)

// TestLoadConfig は環境変数からの設定読み込みを検証する。
// t.Setenvを使うため並列実行しない。
func TestLoadConfig(t *testing.T) {
	t.Run("JWT_SECRETが未設定の場合はエラーになること", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		if _, err := LoadConfig(); err == nil {
			t.Fatal("LoadConfig()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("デフォルト値が設定されること", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("PORT", "")
		t.Setenv("DB_DRIVER", "")
		t.Setenv("TOKEN_TTL", "")
		t.Setenv("BCRYPT_COST", "")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig()でエラーが発生: %v", err)
		}
		if cfg.Port != "8000" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8000")
		}
		if cfg.TokenTTL != 24*time.Hour {
			t.Errorf("TokenTTL = %v, want 24h", cfg.TokenTTL)
		}
		if cfg.DBDriver != credential.DriverSQLite {
			t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, credential.DriverSQLite)
		}
		if cfg.BcryptCost != bcrypt.DefaultCost {
			t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, bcrypt.DefaultCost)
		}
	})

	t.Run("環境変数で上書きできること", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("PORT", "9000")
		t.Setenv("DB_DRIVER", "postgres")
		t.Setenv("DB_DSN", "postgres://u:p@db/auth")
		t.Setenv("TOKEN_TTL", "1h")
		t.Setenv("BCRYPT_COST", "12")
		t.Setenv("FRONTEND_URL", "http://localhost:3000")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig()でエラーが発生: %v", err)
		}
		if cfg.Port != "9000" || cfg.DBDriver != credential.DriverPostgres || cfg.DBDSN != "postgres://u:p@db/auth" {
			t.Errorf("cfg = %+v", cfg)
		}
		if cfg.TokenTTL != time.Hour || cfg.BcryptCost != 12 {
			t.Errorf("TokenTTL = %v, BcryptCost = %d", cfg.TokenTTL, cfg.BcryptCost)
		}
		if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
			t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
		}
	})

	t.Run("不正なTOKEN_TTLとBCRYPT_COSTはエラーになること", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")

		t.Setenv("TOKEN_TTL", "forever")
		if _, err := LoadConfig(); err == nil {
			t.Error("不正なTOKEN_TTLでエラーになるべき")
		}

		t.Setenv("TOKEN_TTL", "")
		t.Setenv("BCRYPT_COST", "99")
		if _, err := LoadConfig(); err == nil {
			t.Error("不正なBCRYPT_COSTでエラーになるべき")
		}
	})
}
