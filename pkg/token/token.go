package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultValidity はトークンのデフォルト有効期間。
const DefaultValidity = 24 * time.Hour

// DefaultIssuer はトークンの発行者クレームのデフォルト値。
const DefaultIssuer = "uploadmesh-auth"

var (
	// ErrEmptySecret は署名鍵が設定されていないことを表す。起動時に致命的エラーとして扱う。
	ErrEmptySecret = errors.New("署名鍵が設定されていません")
	// ErrEmptySubject は主体が空のまま発行しようとしたことを表す。
	ErrEmptySubject = errors.New("トークンの主体が空です")
)

// Claims はトークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// IsAdmin は発行時点の管理者フラグ。検証時にストアへ再確認しない。
	IsAdmin bool `json:"is_admin"`
}

// Identity は検証済みトークンから取り出した利用者情報。
type Identity struct {
	// Subject はトークンの主体（メールアドレス）。
	Subject string
	// IsAdmin は管理者フラグ。
	IsAdmin bool
	// IssuedAt は発行日時。
	IssuedAt time.Time
	// ExpiresAt は有効期限。
	ExpiresAt time.Time
}

// Service はトークンの発行と検証を行う。
// 生成後は読み取り専用のため、複数のゴルーチンから同時に使用できる。
type Service struct {
	secret   []byte
	validity time.Duration
	issuer   string
	now      func() time.Time
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithValidity はトークンの有効期間を変更する。
func WithValidity(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithIssuer は発行者クレームを変更する。
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// New は新しいトークンサービスを生成する。
// 署名鍵が空の場合は ErrEmptySecret を返す。
func New(secret []byte, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	s := &Service{
		secret:   append([]byte(nil), secret...),
		validity: DefaultValidity,
		issuer:   DefaultIssuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Validity はトークンの有効期間を返す。
func (s *Service) Validity() time.Duration {
	return s.validity
}

// Issue は主体と管理者フラグを埋め込んだトークンを発行する。
func (s *Service) Issue(subject string, isAdmin bool) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
		},
		IsAdmin: isAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名と有効期限を検証し、埋め込まれた利用者情報を返す。
// 失敗時は Kind を持つ *Error を返す。署名の比較はgolang-jwtの
// HMAC検証（hmac.Equal）による定数時間比較で行われる。
func (s *Service) Verify(tokenString string) (Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		return Identity{}, classify(tokenString, err)
	}

	if claims.Subject == "" {
		return Identity{}, &Error{Kind: KindMalformed, Err: errors.New("subクレームがありません")}
	}

	identity := Identity{
		Subject:   claims.Subject,
		IsAdmin:   claims.IsAdmin,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

// classify はgolang-jwtのエラーを検証失敗の種類に分類する。
// 署名検証はクレーム検証より先に行われるため、改ざんされた期限切れトークンは
// KindBadSignature になる。
func classify(tokenString string, err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &Error{Kind: KindBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed) && corruptSignatureOnly(tokenString):
		return &Error{Kind: KindBadSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Kind: KindExpired, Err: err}
	default:
		return &Error{Kind: KindMalformed, Err: err}
	}
}

// segmentDecoder はセグメントを厳格なbase64urlとして復号する。
var segmentDecoder = jwt.NewParser(jwt.WithStrictDecoding())

// corruptSignatureOnly はヘッダーとペイロードは復号できるが、署名セグメントだけが
// 厳格な復号に失敗するかを判定する。末尾文字のパディングビットの改ざんもここで検出される。
func corruptSignatureOnly(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}
	for _, seg := range parts[:2] {
		if _, err := segmentDecoder.DecodeSegment(seg); err != nil {
			return false
		}
	}
	_, err := segmentDecoder.DecodeSegment(parts[2])
	return err != nil
}
