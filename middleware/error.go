package middleware

import (
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/gin-gonic/gin"
)

// ErrorHandler 把 c.Error 收集到的错误统一转换成错误响应
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		utils.Logger.Warn().
			Err(err).
			Str("path", c.FullPath()).
			Str("code", utils.ErrorKind(err)).
			Int("errors", len(c.Errors)).
			Msg("请求处理出错")

		// 响应已经写出时只记录日志
		if c.Writer.Written() {
			return
		}
		utils.HandleError(c, err)
	}
}

// NoRoute 未匹配路由返回统一格式的 404
func NoRoute(c *gin.Context) {
	utils.HandleError(c, utils.CreateNotFoundError("接口 "+c.Request.Method+" "+c.Request.URL.Path))
}
