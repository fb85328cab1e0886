package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/controllers"
	"github.com/BerniceZTT/welfare_end/middleware"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/service"
)

// RegisterRecordRoutes 注册业务记录录入路由
func RegisterRecordRoutes(router *gin.Engine, rc *controllers.RecordController, bindings map[models.RecordType]*service.BoundHook) {
	recordGroup := router.Group("/api/records")
	recordGroup.Use(middleware.AuthMiddleware())

	recordGroup.POST("/:recordType", middleware.EscalationTrigger(bindings), rc.CreateRecord)
}
