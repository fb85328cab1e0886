package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/controllers"
	"github.com/BerniceZTT/welfare_end/middleware"
)

// RegisterFollowUpRoutes 注册跟进记录相关路由
func RegisterFollowUpRoutes(router *gin.Engine, fc *controllers.FollowUpController) {
	followUpGroup := router.Group("/api/follow-ups")
	followUpGroup.Use(middleware.AuthMiddleware())

	followUpGroup.POST("", fc.CreateFollowUp)
	followUpGroup.GET("", fc.ListFollowUps)

	// 固定路径需要在 /:id 之前
	followUpGroup.GET("/overdue", fc.ListOverdue)
	followUpGroup.GET("/upcoming", fc.ListUpcoming)
	followUpGroup.GET("/stats", fc.GetStats)
	followUpGroup.GET("/record/:recordType/:recordId", fc.GetByRecord)
	followUpGroup.GET("/history/:recordType/:recordId", fc.GetHistory)

	followUpGroup.GET("/:id", fc.GetFollowUp)
	followUpGroup.PUT("/:id", fc.UpdateFollowUp)
	followUpGroup.DELETE("/:id", fc.DeleteFollowUp)
	followUpGroup.POST("/:id/updates", fc.AddMonthlyUpdate)
	followUpGroup.POST("/:id/complete", fc.CompleteFollowUp)
	followUpGroup.POST("/:id/complete-and-continue", fc.CompleteAndContinue)
	followUpGroup.POST("/:id/cancel", fc.CancelFollowUp)
}
