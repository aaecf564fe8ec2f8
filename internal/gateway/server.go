package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nao1215/uploadmesh/internal/storage"
	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/httpclient"
	"github.com/nao1215/uploadmesh/pkg/metrics"
	"github.com/nao1215/uploadmesh/pkg/middleware"
	"github.com/nao1215/uploadmesh/pkg/queue"
)

// defaultMaxUploadBytes はアップロードリクエストの最大サイズのデフォルト（50MB）。
const defaultMaxUploadBytes = 50 << 20

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// auth は認証サービスのクライアント。
	auth *AuthClient
	// store はアップロードファイルの保存先。
	store storage.ObjectStore
	// publisher はアップロードイベントの発行先。
	publisher queue.Publisher
	// collector はメトリクスの収集先。
	collector *metrics.Collector
	// logger は構造化ロガー。
	logger *slog.Logger
	// limiter はログインのレート制限。無効の場合はnil。
	limiter *middleware.RateLimiter
	// maxUploadBytes はアップロードリクエストの最大サイズ。
	maxUploadBytes int64
}

// Deps はServerが使用する協調オブジェクト。
type Deps struct {
	// Auth は認証サービスのクライアント。
	Auth *AuthClient
	// Store はアップロードファイルの保存先。
	Store storage.ObjectStore
	// Publisher はアップロードイベントの発行先。
	Publisher queue.Publisher
	// Collector はメトリクスの収集先。nilでもよい。
	Collector *metrics.Collector
	// Logger は構造化ロガー。nilの場合はslog.Default()を使う。
	Logger *slog.Logger
}

// NewServer は設定から協調オブジェクトを組み立ててGatewayサーバーを生成する。
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := storage.NewS3(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("S3ストレージの初期化に失敗: %w", err)
		}
		store = s3Store
	default:
		disk, err := storage.NewDisk(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("ディスクストレージの初期化に失敗: %w", err)
		}
		store = disk
	}

	var publisher queue.Publisher
	if cfg.QueueURL != "" {
		publisher = queue.NewHTTPPublisher(cfg.QueueURL, cfg.QueueName)
	} else {
		logger.Warn("QUEUE_URLが未設定のため、アップロードイベントはログに記録するだけです")
		publisher = queue.Discard(logger)
	}

	return newServer(cfg, Deps{
		Auth:      NewAuthClient(cfg.AuthServiceURL, collector),
		Store:     store,
		Publisher: publisher,
		Collector: collector,
		Logger:    logger,
	}), nil
}

// newServer は協調オブジェクトを受け取ってルーティングを構築する。
func newServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLog(logger, deps.Collector))
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	s := &Server{
		router:         router,
		port:           cfg.Port,
		auth:           deps.Auth,
		store:          deps.Store,
		publisher:      deps.Publisher,
		collector:      deps.Collector,
		logger:         logger,
		maxUploadBytes: maxUpload,
	}
	if cfg.LoginRatePerMinute > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.LoginRatePerMinute, deps.Collector)
	}
	s.setupRoutes()
	return s
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるとグレースフルシャットダウンする。
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Gatewayサービスを起動します", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Gatewayサービスを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// Handler はルーティング済みのHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close はレート制限のバックグラウンド処理を停止する。
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	loginGuard := []gin.HandlerFunc{}
	if s.limiter != nil {
		loginGuard = append(loginGuard, s.limiter.Middleware())
	}

	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "Gateway is running"})
	})

	// 認証サービスへの転送
	auth := s.router.Group("/auth")
	{
		auth.POST("/register", s.handleProxy(http.MethodPost, "/register"))
		auth.POST("/login", append(loginGuard, s.handleProxy(http.MethodPost, "/login"))...)
		auth.GET("/protected", s.handleProxy(http.MethodGet, "/protected"))
	}

	s.router.POST("/login", append(loginGuard, s.handleBasicLogin())...)
	s.router.POST("/upload", s.handleUpload())
	s.router.GET("/download", func(c *gin.Context) {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "not implemented"})
	})

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/metrics", gin.WrapH(s.collector.Handler()))
}

// upstreamContext はリクエストIDを引き継いだ上流呼び出し用のコンテキストを返す。
func upstreamContext(c *gin.Context) context.Context {
	return httpclient.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
}

// handleProxy は認証サービスへの透過プロキシハンドラを返す。
// 上流のステータスコードとボディは変更せずに返す。
func (s *Server) handleProxy(method, path string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		header := http.Header{}
		if v := c.GetHeader("Content-Type"); v != "" {
			header.Set("Content-Type", v)
		}
		if v := c.GetHeader("Authorization"); v != "" {
			header.Set("Authorization", v)
		}

		resp, err := s.auth.Forward(upstreamContext(c), method, path, header, bytes.NewReader(body))
		if err != nil {
			s.logger.ErrorContext(c.Request.Context(), "認証サービスへの転送に失敗",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			respondError(c, err)
			return
		}
		writeUpstream(c, resp)
	}
}

// handleBasicLogin はHTTP Basic認証の資格情報で認証サービスにログインする。
func (s *Server) handleBasicLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		email, password, ok := c.Request.BasicAuth()
		if !ok || email == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing credentials"})
			return
		}

		resp, err := s.auth.Login(upstreamContext(c), email, password)
		if err != nil {
			respondError(c, err)
			return
		}
		writeUpstream(c, resp)
	}
}

// writeUpstream は上流のレスポンスをそのまま書き出す。
func writeUpstream(c *gin.Context, resp *httpclient.Response) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, resp.Body)
}

// respondError はエラーの分類に応じたステータスとメッセージを返す。
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err)})
}
