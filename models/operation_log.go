package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OperationLog 写操作审计日志
type OperationLog struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Method        string             `json:"method" bson:"method"`
	Path          string             `json:"path" bson:"path"`
	Resource      string             `json:"resource" bson:"resource"` // follow-ups / records
	ResourceID    string             `json:"resourceId,omitempty" bson:"resourceId,omitempty"`
	OperatorID    string             `json:"operatorId" bson:"operatorId"`
	OperatorName  string             `json:"operatorName" bson:"operatorName"`
	OperatorRole  string             `json:"operatorRole" bson:"operatorRole"`
	RequestBody   interface{}        `json:"requestBody" bson:"requestBody"`
	ResponseData  interface{}        `json:"responseData" bson:"responseData"`
	StatusCode    int                `json:"statusCode" bson:"statusCode"`
	Success       bool               `json:"success" bson:"success"`
	ErrorCode     string             `json:"errorCode,omitempty" bson:"errorCode,omitempty"`
	OperationTime time.Time          `json:"operationTime" bson:"operationTime"`
	ResponseTime  int64              `json:"responseTime" bson:"responseTime"` // 毫秒
	IPAddress     string             `json:"ipAddress" bson:"ipAddress"`
}
