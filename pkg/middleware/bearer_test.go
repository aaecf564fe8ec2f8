package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/token"
)

// stubChecker はテスト用のAccessChecker。
type stubChecker struct {
	identity token.Identity
	err      error
	got      string
}

func (s *stubChecker) CheckAccess(_ context.Context, tokenString string) (token.Identity, error) {
	s.got = tokenString
	return s.identity, s.err
}

// TestBearerToken はBearerToken関数を検証する。
func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{header: "Bearer abc.def.ghi", want: "abc.def.ghi", ok: true},
		{header: "Bearer  padded ", want: "padded", ok: true},
		{header: "Bearer ", want: "", ok: false},
		{header: "abc.def.ghi", want: "", ok: false},
		{header: "Basic dXNlcjpwYXNz", want: "", ok: false},
		{header: "", want: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

// TestBearerAuth はBearerAuthミドルウェアを検証する。
func TestBearerAuth(t *testing.T) {
	t.Parallel()

	serve := func(checker AccessChecker, header string) (*httptest.ResponseRecorder, token.Identity, bool) {
		var captured token.Identity
		var found bool
		router := gin.New()
		router.Use(BearerAuth(checker))
		router.GET("/protected", func(c *gin.Context) {
			captured, found = GetIdentity(c)
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w, captured, found
	}

	errorBody := func(t *testing.T, w *httptest.ResponseRecorder) string {
		t.Helper()
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		return body["error"]
	}

	t.Run("有効なトークンで利用者情報がコンテキストに設定されること", func(t *testing.T) {
		t.Parallel()

		checker := &stubChecker{identity: token.Identity{Subject: "ok@example.com", IsAdmin: true}}
		w, identity, found := serve(checker, "Bearer good-token")

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		if checker.got != "good-token" {
			t.Errorf("検証されたトークン = %q, want %q", checker.got, "good-token")
		}
		if !found || identity.Subject != "ok@example.com" || !identity.IsAdmin {
			t.Errorf("GetIdentity() = (%+v, %v)", identity, found)
		}
	})

	t.Run("Authorizationヘッダーが無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		w, _, _ := serve(&stubChecker{}, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorBody(t, w); got != "No token provided" {
			t.Errorf("error = %q, want %q", got, "No token provided")
		}
	})

	t.Run("Bearer接頭辞が無い場合401が返ること", func(t *testing.T) {
		t.Parallel()

		checker := &stubChecker{}
		w, _, _ := serve(checker, "raw-token")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorBody(t, w); got != "Invalid token format" {
			t.Errorf("error = %q, want %q", got, "Invalid token format")
		}
		if checker.got != "" {
			t.Error("形式不正のトークンが検証に渡されるべきではない")
		}
	})

	t.Run("Bearerの後のトークンが空の場合は検証に委ねられ無効なトークンとして扱われること", func(t *testing.T) {
		t.Parallel()

		checker := &stubChecker{err: apperr.New(apperr.KindUnauthorized, "Invalid or expired token")}
		w, _, found := serve(checker, "Bearer ")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorBody(t, w); got != "Invalid or expired token" {
			t.Errorf("error = %q, want %q", got, "Invalid or expired token")
		}
		if found {
			t.Error("検証失敗時にハンドラーが呼ばれるべきではない")
		}
	})

	t.Run("検証に失敗した場合はエラーの分類に応じたステータスが返ること", func(t *testing.T) {
		t.Parallel()

		checker := &stubChecker{err: apperr.New(apperr.KindUnauthorized, "Invalid or expired token")}
		w, _, found := serve(checker, "Bearer expired")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		if got := errorBody(t, w); got != "Invalid or expired token" {
			t.Errorf("error = %q, want %q", got, "Invalid or expired token")
		}
		if found {
			t.Error("検証失敗時にハンドラーが呼ばれるべきではない")
		}
	})
}

// TestGetIdentity はGetIdentity関数を検証する。
func TestGetIdentity(t *testing.T) {
	t.Parallel()

	t.Run("利用者情報が設定されていない場合falseが返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		if _, ok := GetIdentity(c); ok {
			t.Error("GetIdentity()がtrueを返すべきではない")
		}
	})

	t.Run("型が異なる値が設定されている場合falseが返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("identity", "not-an-identity")
		if _, ok := GetIdentity(c); ok {
			t.Error("GetIdentity()がtrueを返すべきではない")
		}
	})
}
