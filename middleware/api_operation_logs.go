package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/utils"

	"github.com/gin-gonic/gin"
)

// 需要记录的HTTP方法
var loggedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// 不需要记录的路径
var excludedPaths = map[string]bool{
	"/api/auth/validate": true,
	"/api/health":        true,
	"/api/db-status":     true,
}

// OperationLoggerMiddleware 写操作审计中间件
func OperationLoggerMiddleware(store repository.OperationLogStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldLogOperation(c) {
			c.Next()
			return
		}

		startTime := time.Now()
		path := c.Request.URL.Path

		blw := &bodyLogWriter{
			body:           bytes.NewBufferString(""),
			ResponseWriter: c.Writer,
		}
		c.Writer = blw

		// 读取并重置请求体
		var requestBody interface{}
		if c.Request.Body != nil {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				utils.Logger.Error().Err(err).Msg("读取请求体失败")
			} else {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(raw))
				requestBody = decodeBody(raw, c.Request.Header.Get("Content-Type"))
			}
		}

		c.Next()

		var responseData interface{}
		if strings.Contains(c.Writer.Header().Get("Content-Type"), "application/json") {
			responseData = decodeBody(blw.body.Bytes(), "application/json")
		}

		operatorID, operatorName, operatorRole := extractUserInfo(c)
		resource, resourceID := resourceOf(c)

		operationLog := models.OperationLog{
			Method:        c.Request.Method,
			Path:          path,
			Resource:      resource,
			ResourceID:    resourceID,
			OperatorID:    operatorID,
			OperatorName:  operatorName,
			OperatorRole:  operatorRole,
			RequestBody:   sanitizeData(requestBody),
			ResponseData:  sanitizeData(responseData),
			StatusCode:    c.Writer.Status(),
			Success:       c.Writer.Status() < http.StatusBadRequest,
			ErrorCode:     errorCodeOf(responseData),
			OperationTime: startTime,
			ResponseTime:  time.Since(startTime).Milliseconds(),
			IPAddress:     getClientIP(c),
		}

		// 不使用请求上下文，响应结束后仍需写入
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.SaveOperationLog(ctx, &operationLog); err != nil {
			utils.Logger.Error().Err(err).Str("path", path).Msg("保存操作日志失败")
		}
	}
}

// shouldLogOperation 检查是否需要记录此操作
func shouldLogOperation(c *gin.Context) bool {
	path := c.Request.URL.Path
	if excludedPaths[path] || !strings.HasPrefix(path, "/api/") {
		return false
	}
	return loggedMethods[c.Request.Method]
}

func decodeBody(raw []byte, contentType string) interface{} {
	if len(raw) == 0 {
		return nil
	}
	if strings.Contains(contentType, "application/json") {
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// extractUserInfo 从上下文中提取用户信息
func extractUserInfo(c *gin.Context) (string, string, string) {
	user, err := utils.GetUser(c)
	if err != nil {
		return "anonymous", "匿名用户", "UNKNOWN"
	}
	return user.ID, user.Username, user.Role
}

// resourceOf 根据路由参数识别操作对象
func resourceOf(c *gin.Context) (string, string) {
	path := c.Request.URL.Path
	switch {
	case strings.HasPrefix(path, "/api/follow-ups"):
		return "follow-ups", c.Param("id")
	case strings.HasPrefix(path, "/api/records"):
		return "records", c.Param("recordType")
	}
	return "", ""
}

func errorCodeOf(response interface{}) string {
	if m, ok := response.(map[string]interface{}); ok {
		if code, ok := m["code"].(string); ok {
			return code
		}
	}
	return ""
}

// sanitizeData 清理数据中的敏感信息
func sanitizeData(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		sanitized := make(map[string]interface{}, len(v))
		for k, val := range v {
			switch strings.ToLower(k) {
			case "password", "token", "authorization", "secret", "key":
				sanitized[k] = "******"
			default:
				sanitized[k] = sanitizeData(val)
			}
		}
		return sanitized
	case []interface{}:
		sanitized := make([]interface{}, len(v))
		for i, val := range v {
			sanitized[i] = sanitizeData(val)
		}
		return sanitized
	}
	return data
}

// getClientIP 获取客户端IP地址
func getClientIP(c *gin.Context) string {
	if ip := c.Request.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if ip := c.Request.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return c.ClientIP()
}
