package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nao1215/uploadmesh/internal/credential"
	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/metrics"
	"github.com/nao1215/uploadmesh/pkg/middleware"
	"github.com/nao1215/uploadmesh/pkg/token"
)

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service は認証のユースケース。
	service *Service
	// store は認証情報ストア。Closeで閉じる。
	store credential.Store
	// collector はメトリクスの収集先。
	collector *metrics.Collector
	// logger は構造化ロガー。
	logger *slog.Logger
}

// NewServer は設定から認証サーバーを生成する。
// ストアを開いてマイグレーションを適用し、トークンサービスを初期化する。
func NewServer(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	tokens, err := token.New([]byte(cfg.JWTSecret), token.WithValidity(cfg.TokenTTL))
	if err != nil {
		return nil, fmt.Errorf("トークンサービスの初期化に失敗: %w", err)
	}

	store, err := credential.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("認証情報ストアの初期化に失敗: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	svc, err := NewService(store, tokens, cfg.BcryptCost, collector, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("認証サービスの初期化に失敗: %w", err)
	}

	return newServer(cfg.Port, svc, store, collector, logger, cfg.AllowedOrigins), nil
}

// newServer は依存を受け取ってルーティングを構築する。
func newServer(port string, svc *Service, store credential.Store, collector *metrics.Collector, logger *slog.Logger, origins []string) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLog(logger, collector))
	router.Use(middleware.CORS(origins))

	s := &Server{
		router:    router,
		port:      port,
		service:   svc,
		store:     store,
		collector: collector,
		logger:    logger,
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
		s.logger.Info("認証サービスを起動します", slog.String("addr", server.Addr))
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

	s.logger.Info("認証サービスを停止します")
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

// Close はストアを閉じる。
func (s *Server) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex())
	s.router.POST("/register", s.handleRegister())
	s.router.POST("/login", s.handleLogin())
	s.router.GET("/protected", middleware.BearerAuth(s.service), s.handleProtected())

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
	s.router.GET("/metrics", gin.WrapH(s.collector.Handler()))
}

// credentialsRequest は登録・ログインのリクエストボディ。
type credentialsRequest struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password は平文のパスワード。ログに出力してはならない。
	Password string `json:"password"`
}

// bindCredentials はリクエストボディを読み取る。
// JSONとして解釈できない場合はInvalidInputを返す。
func bindCredentials(c *gin.Context) (credentialsRequest, error) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return credentialsRequest{}, apperr.Wrap(apperr.KindInvalidInput, msgCredentialsRequired, err)
	}
	return req, nil
}

// respondError はエラーの分類に応じたステータスとメッセージを返す。
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.HTTPStatus(err), gin.H{"error": apperr.PublicMessage(err)})
}

// handleIndex はサービスの概要と利用可能なエンドポイントを返す。
func (s *Server) handleIndex() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "auth",
			"status":  "running",
			"endpoints": []string{
				"POST /register",
				"POST /login",
				"GET /protected",
			},
		})
	}
}

// handleRegister は利用者登録のハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindCredentials(c)
		if err == nil {
			err = s.service.Register(c.Request.Context(), req.Email, req.Password)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully!",
			"email":   req.Email,
		})
	}
}

// handleLogin はログインのハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindCredentials(c)
		if err != nil {
			respondError(c, err)
			return
		}

		tok, err := s.service.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful!",
			"token":   tok,
			"email":   req.Email,
		})
	}
}

// handleProtected は検証済みトークンの利用者情報を返す。
func (s *Server) handleProtected() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": msgInvalidToken})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Access granted!",
			"user":     identity.Subject,
			"is_admin": identity.IsAdmin,
		})
	}
}
