package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/utils"
)

// ValidateToken 返回 token 中的用户身份，前端用于校验登录状态
func ValidateToken(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	utils.SuccessResponse(c, gin.H{"user": gin.H{
		"id":       user.ID,
		"username": user.Username,
		"role":     user.Role,
	}}, "")
}
