package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/httpclient"
	"github.com/nao1215/uploadmesh/pkg/metrics"
)

// upstreamAuth はメトリクス上の認証サービスの名前。
const upstreamAuth = "auth"

// Access は認証サービスが返す検証済みの利用者情報。
type Access struct {
	// User はトークンの主体（メールアドレス）。
	User string `json:"user"`
	// IsAdmin は管理者フラグ。
	IsAdmin bool `json:"is_admin"`
}

// RejectedError は認証サービスが200以外を返したことを表す。
// ステータスとボディはクライアントにそのまま返す。
type RejectedError struct {
	// Response は認証サービスのレスポンス。
	Response *httpclient.Response
}

// Error はerrorインターフェースを実装する。
func (e *RejectedError) Error() string {
	return fmt.Sprintf("認証サービスが拒否しました: status=%d", e.Response.StatusCode)
}

// AuthClient は認証サービスのクライアント。
type AuthClient struct {
	client    *httpclient.Client
	collector *metrics.Collector
}

// NewAuthClient は新しいAuthClientを生成する。collectorはnilでもよい。
func NewAuthClient(baseURL string, collector *metrics.Collector, opts ...httpclient.Option) *AuthClient {
	return &AuthClient{
		client:    httpclient.New(baseURL, opts...),
		collector: collector,
	}
}

// Forward はリクエストを認証サービスに転送し、レスポンスをそのまま返す。
// 通信できなかった場合はUpstreamUnavailableを返す。
func (a *AuthClient) Forward(ctx context.Context, method, path string, header http.Header, body io.Reader) (*httpclient.Response, error) {
	resp, err := a.client.Do(ctx, method, path, header, body)
	if err != nil {
		a.collector.RecordUpstream(upstreamAuth, 0)
		return nil, apperr.Wrap(apperr.KindUpstreamUnavailable, "auth service unavailable", err)
	}
	a.collector.RecordUpstream(upstreamAuth, resp.StatusCode)
	return resp, nil
}

// Login はメールアドレスとパスワードで認証サービスにログインする。
func (a *AuthClient) Login(ctx context.Context, email, password string) (*httpclient.Response, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "internal server error", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return a.Forward(ctx, http.MethodPost, "/login", header, bytes.NewReader(body))
}

// Validate はトークンを認証サービスの/protectedで検証する。
// 200以外が返った場合は *RejectedError を返す。
func (a *AuthClient) Validate(ctx context.Context, tokenString string) (Access, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+tokenString)

	resp, err := a.Forward(ctx, http.MethodGet, "/protected", header, nil)
	if err != nil {
		return Access{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Access{}, &RejectedError{Response: resp}
	}

	var access Access
	if err := json.Unmarshal(resp.Body, &access); err != nil {
		return Access{}, apperr.Wrap(apperr.KindUpstreamUnavailable, "auth service unavailable",
			fmt.Errorf("認証サービスのレスポンスを解釈できません: %w", err))
	}
	return access, nil
}
