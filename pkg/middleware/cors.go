package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// corsPolicy はCORSで許可するオリジンと応答ヘッダーの組。
type corsPolicy struct {
	origins map[string]struct{}
	methods string
	headers string
}

// allows はオリジンが許可リストに含まれるかを返す。空のオリジンは常に拒否する。
func (p corsPolicy) allows(origin string) bool {
	if origin == "" {
		return false
	}
	_, ok := p.origins[origin]
	return ok
}

// writeHeaders は許可されたオリジンへの応答ヘッダーを設定する。
func (p corsPolicy) writeHeaders(c *gin.Context, origin string) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", p.methods)
	h.Set("Access-Control-Allow-Headers", p.headers)
	h.Set("Access-Control-Expose-Headers", headerRequestID)
	h.Set("Access-Control-Max-Age", "86400")
}

// CORS は許可リストのオリジンからのブラウザ呼び出しを受け付けるGinミドルウェアを返す。
// プリフライト（Access-Control-Request-Method付きのOPTIONS）はここで応答し、
// 許可されていないオリジンからのプリフライトは403で拒否する。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	policy := corsPolicy{
		origins: make(map[string]struct{}, len(allowedOrigins)),
		methods: strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "),
		headers: "Authorization, Content-Type",
	}
	for _, o := range allowedOrigins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			policy.origins[o] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		c.Writer.Header().Add("Vary", "Origin")
		origin := c.GetHeader("Origin")
		allowed := policy.allows(origin)
		if allowed {
			policy.writeHeaders(c, origin)
		}

		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""
		switch {
		case preflight && allowed:
			c.AbortWithStatus(http.StatusNoContent)
		case preflight:
			c.AbortWithStatus(http.StatusForbidden)
		default:
			c.Next()
		}
	}
}
