// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"homesync-go/internal/service"
	"homesync-go/pkg/log"
	"homesync-go/pkg/token"
)

// SessionKey 是 gin 上下文中存放 *service.Session 的键。
const SessionKey = "session"

// SessionAuth 创建一个 Gin 中间件，用于会话令牌认证。
// 它会从请求头中提取 token，验证其有效性，并将对应的会话存入 Gin 的上下文中。
func SessionAuth(jwtManager *token.JWTManager, sessions service.SessionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "请求未包含授权头")
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "无效的授权头格式")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, bearerPrefix)

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Warnf("会话令牌校验失败: %v", err)
			abort(c, http.StatusUnauthorized, "无效或已过期的 token")
			return
		}

		// 令牌有效但会话可能已被关闭或回收
		sess, err := sessions.Get(claims.SessionID)
		if err != nil {
			abort(c, http.StatusNotFound, "会话不存在或已关闭")
			return
		}

		c.Set(SessionKey, sess)
		c.Set("claims", claims)
		c.Next()
	}
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}
