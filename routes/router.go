package routes

import (
	"context"
	"net/http"

	"github.com/BerniceZTT/welfare_end/controllers"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/service"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 路由依赖
type Handlers struct {
	FollowUps *controllers.FollowUpController
	Records   *controllers.RecordController
	Bindings  map[models.RecordType]*service.BoundHook
	// DBStatus 为 nil 时 /api/db-status 返回 503
	DBStatus func(ctx context.Context) (map[string]interface{}, error)
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, h Handlers) {
	RegisterAuthRoutes(router)
	RegisterFollowUpRoutes(router, h.FollowUps)
	RegisterRecordRoutes(router, h.Records, h.Bindings)

	// 健康检查路由
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 数据库状态检查路由
	router.GET("/api/db-status", func(c *gin.Context) {
		if h.DBStatus == nil {
			utils.ErrorResponse(c, "当前存储驱动不支持状态检查", http.StatusServiceUnavailable)
			return
		}
		status, err := h.DBStatus(c.Request.Context())
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
