package middleware

import (
	"net/http"
	"strings"

	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 解析 Bearer token，把用户信息放入上下文。只做身份识别，不做权限判断
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.Logger.Info().
				Str("path", c.Request.URL.Path).
				Msg("缺少Authorization头或格式错误")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "未授权访问",
				"code":    "MISSING_TOKEN",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := utils.ParseToken(token)
		if err != nil {
			utils.Logger.Error().Err(err).Str("authorization", getShortAuthHeader(authHeader)).Msg("Token验证失败")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "无效的token: " + err.Error(),
				"code":    "INVALID_TOKEN",
			})
			return
		}

		if id, _ := claims["id"].(string); id == "" {
			utils.Logger.Warn().Interface("claims", claims).Msg("Token负载缺少用户ID")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   "Token缺少必要字段",
				"code":    "INVALID_TOKEN",
			})
			return
		}

		c.Set("user", claims)
		utils.Logger.Debug().
			Interface("user", claims["username"]).
			Str("path", c.Request.URL.Path).
			Msg("验证成功")

		c.Next()
	}
}

// getShortAuthHeader 获取截断的授权头，保护敏感信息
func getShortAuthHeader(header string) string {
	if len(header) > 15 {
		return header[:15] + "..."
	}
	return header
}
