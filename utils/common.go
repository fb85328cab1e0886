package utils

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

// LoginUser 当前登录用户
type LoginUser struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Username string `json:"name"`
}

// GetUser 从上下文获取当前用户
func GetUser(c *gin.Context) (*LoginUser, error) {
	currentUser, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("GetUser 未授权访问")
	}

	var claims map[string]interface{}
	switch v := currentUser.(type) {
	case jwt.MapClaims:
		claims = v
	case map[string]interface{}:
		claims = v
	case *LoginUser:
		return v, nil
	default:
		return nil, fmt.Errorf("无法识别的用户信息类型: %T", currentUser)
	}

	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("无效的用户ID")
	}
	role, _ := claims["role"].(string)
	username, ok := claims["username"].(string)
	if !ok {
		username, _ = claims["name"].(string)
	}

	return &LoginUser{
		ID:       id,
		Role:     role,
		Username: username,
	}, nil
}

// PaginatedResponse 分页响应
func PaginatedResponse(c *gin.Context, data interface{}, total int64, page int64, limit int64) {
	pages := int64(0)
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
		"pagination": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
			"pages": pages,
		},
	})
}

// 支持的日期格式
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate 解析日期字符串，日期格式按 loc 时区解释
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, CreateValidationError("日期不能为空")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, CreateValidationError(fmt.Sprintf("无效的日期格式: %s", value))
}

// QueryBool 解析布尔查询参数，未提供返回 nil
func QueryBool(c *gin.Context, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, CreateValidationError(fmt.Sprintf("参数 %s 必须是布尔值", key))
	}
	return &v, nil
}

// QueryInt 解析整数查询参数
func QueryInt(c *gin.Context, key string, def int64) (int64, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, CreateValidationError(fmt.Sprintf("参数 %s 必须是整数", key))
	}
	return v, nil
}
