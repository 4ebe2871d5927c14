package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portfolio_sync/pkg/auth"
)

// AuthMiddleware JWT认证中间件
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过健康检查和登录接口
		path := c.Request.URL.Path
		if path == "/health" ||
			path == "/api/v1/auth/login" ||
			(!strings.HasPrefix(path, "/api/") && path != "/ws") {
			c.Next()
			return
		}

		var tokenString string
		if path == "/ws" {
			// WebSocket握手无法带自定义头，token放在查询参数里
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "缺少token参数",
					"code":  "MISSING_TOKEN_PARAM",
				})
				c.Abort()
				return
			}
		} else {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "缺少Authorization头",
					"code":  "MISSING_AUTH_HEADER",
				})
				c.Abort()
				return
			}

			if strings.HasPrefix(authHeader, "Bearer ") {
				tokenString = strings.TrimPrefix(authHeader, "Bearer ")
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "无效的Authorization格式，应为 'Bearer <token>'",
					"code":  "INVALID_AUTH_FORMAT",
				})
				c.Abort()
				return
			}
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			logrus.Warnf("Token验证失败: %v", err)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "无效的token",
				"code":  "INVALID_TOKEN",
			})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// GetCurrentUser 从上下文中获取当前用户
func GetCurrentUser(c *gin.Context) string {
	if username, exists := c.Get("username"); exists {
		return username.(string)
	}
	return ""
}
