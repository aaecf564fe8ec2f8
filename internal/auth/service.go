package auth

import (
	"context"
	"errors"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/nao1215/uploadmesh/internal/credential"
	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/metrics"
	"github.com/nao1215/uploadmesh/pkg/token"
)

// MinPasswordLength はパスワードの最小長（文字数）。
const MinPasswordLength = 6

const (
	msgCredentialsRequired = "Email and password required"
	msgPasswordTooShort    = "Password must be at least 6 characters"
	msgPasswordTooLong     = "Password must be at most 72 bytes"
	msgAlreadyRegistered   = "Email already registered"
	msgInvalidCredentials  = "Invalid email or password"
	msgInvalidToken        = "Invalid or expired token"
	msgDatabaseError       = "Database error"
)

// Service は認証のユースケースを実装する。HTTPには依存しない。
type Service struct {
	store     credential.Store
	tokens    *token.Service
	collector *metrics.Collector
	logger    *slog.Logger
	cost      int
	// dummyHash は存在しない利用者のログイン時に比較するハッシュ。
	// 利用者の有無で応答時間が変わらないようにする。
	dummyHash []byte
}

// NewService は新しいServiceを生成する。collectorとloggerはnilでもよい。
func NewService(store credential.Store, tokens *token.Service, cost int, collector *metrics.Collector, logger *slog.Logger) (*Service, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("uploadmesh-dummy-password"), cost)
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     store,
		tokens:    tokens,
		collector: collector,
		logger:    logger,
		cost:      cost,
		dummyHash: dummy,
	}, nil
}

// Register は一般利用者として新規登録する。管理者フラグは常にfalse。
func (s *Service) Register(ctx context.Context, email, password string) error {
	err := s.register(ctx, email, password)
	s.collector.RecordAuthOperation("register", resultLabel(err))
	return err
}

func (s *Service) register(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return apperr.New(apperr.KindInvalidInput, msgCredentialsRequired)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.New(apperr.KindInvalidInput, msgPasswordTooShort)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return apperr.Wrap(apperr.KindInvalidInput, msgPasswordTooLong, err)
		}
		return apperr.Wrap(apperr.KindInternal, "internal server error", err)
	}

	err = s.store.Create(ctx, credential.Identity{
		Email:        email,
		PasswordHash: string(hash),
		IsAdmin:      false,
	})
	switch {
	case errors.Is(err, credential.ErrDuplicate):
		return apperr.Wrap(apperr.KindConflict, msgAlreadyRegistered, err)
	case err != nil:
		s.logger.ErrorContext(ctx, "利用者の登録に失敗", slog.String("error", err.Error()))
		return apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}

	s.logger.InfoContext(ctx, "利用者を登録しました", slog.String("email", email))
	return nil
}

// Login は認証情報を確認し、署名付きトークンを発行する。
// 利用者が存在しない場合とパスワードが一致しない場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	tok, err := s.login(ctx, email, password)
	s.collector.RecordAuthOperation("login", resultLabel(err))
	return tok, err
}

func (s *Service) login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", apperr.New(apperr.KindInvalidInput, msgCredentialsRequired)
	}

	identity, err := s.store.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, credential.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return "", apperr.Wrap(apperr.KindUnauthorized, msgInvalidCredentials, err)
	case err != nil:
		s.logger.ErrorContext(ctx, "利用者の検索に失敗", slog.String("error", err.Error()))
		return "", apperr.Wrap(apperr.KindInternal, msgDatabaseError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", apperr.Wrap(apperr.KindUnauthorized, msgInvalidCredentials, err)
	}

	tok, err := s.tokens.Issue(identity.Email, identity.IsAdmin)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "internal server error", err)
	}
	return tok, nil
}

// CheckAccess はトークンを検証し、埋め込まれた利用者情報を返す。
// ストアには問い合わせない。
func (s *Service) CheckAccess(_ context.Context, tokenString string) (token.Identity, error) {
	identity, err := s.tokens.Verify(tokenString)
	if err != nil {
		s.collector.RecordTokenVerification(string(token.KindOf(err)))
		return token.Identity{}, apperr.Wrap(apperr.KindUnauthorized, msgInvalidToken, err)
	}
	s.collector.RecordTokenVerification("ok")
	return identity, nil
}

// resultLabel はメトリクス用に結果をラベル化する。
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
