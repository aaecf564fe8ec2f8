// 認証サービスのエントリポイント。
// 利用者の登録、ログインによるトークン発行、トークン検証を担当する。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/uploadmesh/internal/auth"
	"github.com/nao1215/uploadmesh/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("認証サーバーが異常終了しました: %v", err)
	}
}

func run() error {
	cfg, err := auth.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	l := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel), "auth")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := auth.NewServer(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("認証サーバーの初期化に失敗: %w", err)
	}
	defer server.Close()

	return server.Run(ctx)
}
