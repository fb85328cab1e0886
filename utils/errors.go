package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// 错误码
const (
	ErrCodeNotFound              = "NOT_FOUND"
	ErrCodeInvalidTransition     = "INVALID_TRANSITION"
	ErrCodeValidation            = "VALIDATION_ERROR"
	ErrCodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// ApiError 自定义API错误
type ApiError struct {
	StatusCode int
	Message    string
	ErrorCode  string
	Err        error
}

// Error 实现error接口
func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *ApiError) Unwrap() error {
	return e.Err
}

// Is 按错误码比较，便于 errors.Is(err, utils.ErrNotFound)
func (e *ApiError) Is(target error) bool {
	t, ok := target.(*ApiError)
	if !ok {
		return false
	}
	return t.ErrorCode == e.ErrorCode && t.Message == ""
}

// 哨兵错误，只用于 errors.Is 比较错误类型
var (
	ErrNotFound              = &ApiError{ErrorCode: ErrCodeNotFound}
	ErrInvalidTransition     = &ApiError{ErrorCode: ErrCodeInvalidTransition}
	ErrValidation            = &ApiError{ErrorCode: ErrCodeValidation}
	ErrDependencyUnavailable = &ApiError{ErrorCode: ErrCodeDependencyUnavailable}
)

// NewApiError 创建API错误
func NewApiError(message string, statusCode int, errorCode string) *ApiError {
	return &ApiError{
		StatusCode: statusCode,
		Message:    message,
		ErrorCode:  errorCode,
	}
}

// CreateNotFoundError 创建资源不存在错误
func CreateNotFoundError(resource string) *ApiError {
	return NewApiError(resource+"不存在", http.StatusNotFound, ErrCodeNotFound)
}

// CreateInvalidTransitionError 创建非法状态流转错误
func CreateInvalidTransitionError(message string) *ApiError {
	return NewApiError(message, http.StatusConflict, ErrCodeInvalidTransition)
}

// CreateValidationError 创建参数校验错误
func CreateValidationError(message string) *ApiError {
	return NewApiError(message, http.StatusBadRequest, ErrCodeValidation)
}

// CreateDependencyUnavailableError 创建依赖不可用错误（数据库不可达等）
func CreateDependencyUnavailableError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    "存储服务不可用",
		ErrorCode:  ErrCodeDependencyUnavailable,
		Err:        err,
	}
}

// CreateUnauthorizedError 创建未授权错误
func CreateUnauthorizedError() *ApiError {
	return NewApiError("未授权访问", http.StatusUnauthorized, ErrCodeUnauthorized)
}

// ErrorKind 返回错误码，非 ApiError 返回 INTERNAL_ERROR
func ErrorKind(err error) string {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode
	}
	return ErrCodeInternal
}

// HandleError 处理错误并返回适当的响应
func HandleError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	errorMessage := err.Error()

	LogError(err, map[string]interface{}{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}, "API错误: "+errorMessage)

	var apiErr *ApiError
	if errors.As(err, &apiErr) && apiErr.StatusCode != 0 {
		response := gin.H{"success": false, "error": apiErr.Message}
		if apiErr.ErrorCode != "" {
			response["code"] = apiErr.ErrorCode
		}
		c.JSON(apiErr.StatusCode, response)
		return
	}

	// 其他未预期的错误
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   errorMessage,
		"code":    ErrCodeInternal,
	})
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, data interface{}, message string, statusCode ...int) {
	code := http.StatusOK
	if len(statusCode) > 0 {
		code = statusCode[0]
	}

	response := gin.H{"success": true}
	if data != nil {
		response["data"] = data
	}
	if message != "" {
		response["message"] = message
	}

	c.JSON(code, response)
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error":   message,
	})
}
