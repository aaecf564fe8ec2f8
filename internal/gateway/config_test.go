package gateway

import "testing"

// TestLoadConfig は環境変数からの設定読み込みを検証する。
// t.Setenvを使うため並列実行しない。
func TestLoadConfig(t *testing.T) {
	t.Run("デフォルト値が設定されること", func(t *testing.T) {
		for _, key := range []string{"PORT", "AUTH_SERVICE_URL", "STORAGE_BACKEND", "QUEUE_NAME", "MAX_UPLOAD_MB", "LOGIN_RATE_PER_MINUTE"} {
			t.Setenv(key, "")
		}

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig()でエラーが発生: %v", err)
		}
		if cfg.Port != "8080" {
			t.Errorf("Port = %q, want %q", cfg.Port, "8080")
		}
		if cfg.AuthServiceURL != "http://auth-service:8000" {
			t.Errorf("AuthServiceURL = %q", cfg.AuthServiceURL)
		}
		if cfg.StorageBackend != "disk" || cfg.QueueName != "video" {
			t.Errorf("StorageBackend = %q, QueueName = %q", cfg.StorageBackend, cfg.QueueName)
		}
		if cfg.MaxUploadBytes != 50<<20 {
			t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes, 50<<20)
		}
		if cfg.LoginRatePerMinute != 30 {
			t.Errorf("LoginRatePerMinute = %d, want 30", cfg.LoginRatePerMinute)
		}
	})

	t.Run("S3バックエンドの設定を読み込めること", func(t *testing.T) {
		t.Setenv("STORAGE_BACKEND", "s3")
		t.Setenv("S3_BUCKET", "videos")
		t.Setenv("S3_ENDPOINT", "http://minio:9000")
		t.Setenv("S3_USE_PATH_STYLE", "true")

		cfg, err := LoadConfig()
		if err != nil {
			t.Fatalf("LoadConfig()でエラーが発生: %v", err)
		}
		if cfg.S3.Bucket != "videos" || cfg.S3.Endpoint != "http://minio:9000" || !cfg.S3.UsePathStyle {
			t.Errorf("S3 = %+v", cfg.S3)
		}
	})

	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "S3バケット未指定", env: map[string]string{"STORAGE_BACKEND": "s3", "S3_BUCKET": ""}},
		{name: "未知のストレージ", env: map[string]string{"STORAGE_BACKEND": "gridfs"}},
		{name: "不正なMAX_UPLOAD_MB", env: map[string]string{"MAX_UPLOAD_MB": "-1"}},
		{name: "不正なLOGIN_RATE_PER_MINUTE", env: map[string]string{"LOGIN_RATE_PER_MINUTE": "many"}},
	}
	for _, tt := range tests {
		t.Run(tt.name+"はエラーになること", func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("LoadConfig()がエラーを返すべきだが、nilが返った")
			}
		})
	}
}
