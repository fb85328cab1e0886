package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/middleware"
	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/repository"
	"github.com/BerniceZTT/welfare_end/utils"
)

// RecordController 业务记录录入，创建成功后触发自动跟进
type RecordController struct {
	store repository.DomainRecordStore
}

// NewRecordController 创建业务记录控制器
func NewRecordController(store repository.DomainRecordStore) *RecordController {
	return &RecordController{store: store}
}

// CreateRecord 保存业务记录
func (rc *RecordController) CreateRecord(c *gin.Context) {
	recordType := models.RecordType(c.Param("recordType"))
	if !recordType.IsValid() {
		utils.HandleError(c, utils.CreateNotFoundError("记录类型 "+string(recordType)))
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	var doc models.DomainRecord
	if err := c.ShouldBindJSON(&doc); err != nil || len(doc) == 0 {
		utils.HandleError(c, utils.CreateValidationError("无效的请求数据"))
		return
	}
	doc["createdBy"] = user.ID

	stored, err := rc.store.InsertRecord(c.Request.Context(), recordType, doc)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.LogInfo(map[string]interface{}{
		"recordType": recordType,
		"recordId":   stored.ID(),
		"userId":     user.ID,
	}, "创建业务记录成功")

	utils.SuccessResponse(c, stored, "创建成功", http.StatusCreated)

	// 响应已写出，跟进创建结果不影响本次请求
	if trigger, ok := middleware.TriggerFromContext(c); ok {
		trigger.Fire(stored, user.ID)
	}
}
