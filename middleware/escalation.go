package middleware

import (
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/service"

	"github.com/gin-gonic/gin"
)

const escalationTriggerKey = "escalationTrigger"

// EscalationTrigger 为业务记录创建请求准备一次性的自动升级触发器
func EscalationTrigger(bindings map[models.RecordType]*service.BoundHook) gin.HandlerFunc {
	return func(c *gin.Context) {
		if bound, ok := bindings[models.RecordType(c.Param("recordType"))]; ok {
			c.Set(escalationTriggerKey, bound.NewTrigger())
		}
		c.Next()
	}
}

// TriggerFromContext 取出当前请求的触发器
func TriggerFromContext(c *gin.Context) (*service.Trigger, bool) {
	v, ok := c.Get(escalationTriggerKey)
	if !ok {
		return nil, false
	}
	t, ok := v.(*service.Trigger)
	return t, ok
}
