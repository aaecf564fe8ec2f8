package gateway

import (
	"fmt"
	"os"
	"strconv"

	"github.com/nao1215/uploadmesh/internal/storage"
)

// Config はGatewayサービスの設定。
type Config struct {
	// Port はリッスンポート。
	Port string
	// AuthServiceURL は認証サービスのベースURL。
	AuthServiceURL string
	// StorageBackend はファイルの保存先（disk | s3）。
	StorageBackend string
	// StorageDir はdiskバックエンドの保存先ディレクトリ。
	StorageDir string
	// S3 はs3バックエンドの接続設定。
	S3 storage.S3Config
	// QueueURL はキューサービスのベースURL。空の場合はイベントをログに記録するだけ。
	QueueURL string
	// QueueName はアップロードイベントの発行先キュー名。
	QueueName string
	// MaxUploadBytes はアップロードリクエストの最大サイズ。
	MaxUploadBytes int64
	// LoginRatePerMinute はクライアントIPごとのログイン試行の上限（毎分）。0以下で無効。
	LoginRatePerMinute int
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// LogLevel はログレベル。
	LogLevel string
}

// LoadConfig は環境変数から設定を読み込む。
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:           getEnvOr("PORT", "8080"),
		AuthServiceURL: getEnvOr("AUTH_SERVICE_URL", "http://auth-service:8000"),
		StorageBackend: getEnvOr("STORAGE_BACKEND", "disk"),
		StorageDir:     getEnvOr("STORAGE_DIR", "/data/uploads"),
		S3: storage.S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnvOr("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			UsePathStyle:    getEnvOr("S3_USE_PATH_STYLE", "true") == "true",
		},
		QueueURL:       os.Getenv("QUEUE_URL"),
		QueueName:      getEnvOr("QUEUE_NAME", "video"),
		AllowedOrigins: []string{getEnvOr("FRONTEND_URL", "http://localhost:3000")},
		LogLevel:       getEnvOr("LOG_LEVEL", "info"),
	}

	maxMB, err := strconv.Atoi(getEnvOr("MAX_UPLOAD_MB", "50"))
	if err != nil || maxMB <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MBが不正です: %q", os.Getenv("MAX_UPLOAD_MB"))
	}
	cfg.MaxUploadBytes = int64(maxMB) << 20

	rate, err := strconv.Atoi(getEnvOr("LOGIN_RATE_PER_MINUTE", "30"))
	if err != nil {
		return Config{}, fmt.Errorf("LOGIN_RATE_PER_MINUTEが不正です: %q", os.Getenv("LOGIN_RATE_PER_MINUTE"))
	}
	cfg.LoginRatePerMinute = rate

	switch cfg.StorageBackend {
	case "disk":
	case "s3":
		if cfg.S3.Bucket == "" {
			return Config{}, fmt.Errorf("STORAGE_BACKEND=s3 の場合はS3_BUCKETが必要です")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKENDが不正です: %q", cfg.StorageBackend)
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
