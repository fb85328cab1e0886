package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/controllers"
	"github.com/BerniceZTT/welfare_end/middleware"
)

// RegisterAuthRoutes 注册认证相关路由，token 由统一登录服务签发
func RegisterAuthRoutes(router *gin.Engine) {
	authGroup := router.Group("/api/auth")
	authGroup.GET("/validate", middleware.AuthMiddleware(), controllers.ValidateToken)
}
