// API Gatewayサービスのエントリポイント。
// 認証サービスへの転送と、管理者によるファイルアップロードを担当する。
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線となる。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/uploadmesh/internal/gateway"
	"github.com/nao1215/uploadmesh/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Gatewayサーバーが異常終了しました: %v", err)
	}
}

func run() error {
	cfg, err := gateway.LoadConfig()
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	l := logger.SetupDefault(os.Stdout, logger.ParseLevel(cfg.LogLevel), "gateway")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("Gatewayサーバーの初期化に失敗: %w", err)
	}
	defer server.Close()

	return server.Run(ctx)
}
