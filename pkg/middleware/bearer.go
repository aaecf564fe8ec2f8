package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/uploadmesh/pkg/apperr"
	"github.com/nao1215/uploadmesh/pkg/token"
)

// contextKeyIdentity はGinコンテキストに検証済みの利用者情報を格納するキー。
const contextKeyIdentity = "identity"

// AccessChecker はトークンを検証して利用者情報を返す。
type AccessChecker interface {
	CheckAccess(ctx context.Context, token string) (token.Identity, error)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
// "Bearer <token>" 形式でない場合や空の場合はfalseを返す。
func BearerToken(header string) (string, bool) {
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	tokenString = strings.TrimSpace(tokenString)
	return tokenString, tokenString != ""
}

// BearerAuth はBearerトークンを検証するGinミドルウェアを返す。
// 検証に成功した場合、コンテキストに利用者情報を設定する。
func BearerAuth(checker AccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "No token provided",
			})
			return
		}

		// 接頭辞の有無だけを形式として扱い、空のトークンは検証側で無効と判定させる
		rest, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token format",
			})
			return
		}
		tokenString := strings.TrimSpace(rest)

		identity, err := checker.CheckAccess(c.Request.Context(), tokenString)
		if err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{
				"error": apperr.PublicMessage(err),
			})
			return
		}

		c.Set(contextKeyIdentity, identity)
		c.Next()
	}
}

// GetIdentity はGinコンテキストから検証済みの利用者情報を取得する。
// BearerAuthミドルウェアが事前に適用されている必要がある。
func GetIdentity(c *gin.Context) (token.Identity, bool) {
	v, ok := c.Get(contextKeyIdentity)
	if !ok {
		return token.Identity{}, false
	}
	identity, ok := v.(token.Identity)
	return identity, ok
}
