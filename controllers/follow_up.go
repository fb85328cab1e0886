package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BerniceZTT/welfare_end/models"
	"github.com/BerniceZTT/welfare_end/service"
	"github.com/BerniceZTT/welfare_end/utils"
)

// FollowUpController 跟进记录接口
type FollowUpController struct {
	engine *service.LifecycleEngine
	stats  *service.StatisticsAggregator
	loc    *time.Location
}

// NewFollowUpController 创建跟进控制器，loc 用于解析不带时区的日期
func NewFollowUpController(engine *service.LifecycleEngine, stats *service.StatisticsAggregator, loc *time.Location) *FollowUpController {
	if loc == nil {
		loc = time.Local
	}
	return &FollowUpController{engine: engine, stats: stats, loc: loc}
}

type createFollowUpRequest struct {
	RecordType         models.RecordType       `json:"recordType"`
	RecordID           string                  `json:"recordId"`
	RecordName         string                  `json:"recordName"`
	Module             models.Module           `json:"module"`
	Title              string                  `json:"title"`
	Description        string                  `json:"description"`
	Priority           models.FollowUpPriority `json:"priority"`
	FollowUpDate       string                  `json:"followUpDate"`
	AssignedTo         string                  `json:"assignedTo"`
	WardNo             string                  `json:"wardNo"`
	Habitation         string                  `json:"habitation"`
	ProjectResponsible string                  `json:"projectResponsible"`
	Tags               []string                `json:"tags"`
	Category           string                  `json:"category"`
}

type updateFollowUpRequest struct {
	Title              *string                  `json:"title"`
	Description        *string                  `json:"description"`
	Priority           *models.FollowUpPriority `json:"priority"`
	Status             *models.FollowUpStatus   `json:"status"`
	FollowUpDate       *string                  `json:"followUpDate"`
	AssignedTo         *string                  `json:"assignedTo"`
	WardNo             *string                  `json:"wardNo"`
	Habitation         *string                  `json:"habitation"`
	ProjectResponsible *string                  `json:"projectResponsible"`
	Tags               []string                 `json:"tags"`
	Category           *string                  `json:"category"`
}

type notesRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// CreateFollowUp 创建跟进记录
func (fc *FollowUpController) CreateFollowUp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req createFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateValidationError("无效的请求数据"))
		return
	}

	dueDate, err := utils.ParseDate(req.FollowUpDate, fc.loc)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	rec, err := fc.engine.Create(c.Request.Context(), models.CreateFollowUpInput{
		RecordType:   req.RecordType,
		RecordID:     req.RecordID,
		RecordName:   req.RecordName,
		Module:       req.Module,
		Title:        req.Title,
		Description:  req.Description,
		Priority:     req.Priority,
		FollowUpDate: dueDate,
		AssignedTo:   req.AssignedTo,
		CreatedBy:    user.ID,
		Classification: models.Classification{
			WardNo:             req.WardNo,
			Habitation:         req.Habitation,
			ProjectResponsible: req.ProjectResponsible,
			Tags:               req.Tags,
			Category:           req.Category,
		},
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, rec, "跟进记录创建成功", http.StatusCreated)
}

// ListFollowUps 分页查询跟进
func (fc *FollowUpController) ListFollowUps(c *gin.Context) {
	filter, page, err := fc.parseListQuery(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	// 默认只列出有效记录，isActive=false 查看已结束的
	if filter.IsActive == nil {
		active := true
		filter.IsActive = &active
	}

	result, err := fc.engine.List(c.Request.Context(), filter, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.PaginatedResponse(c, result.Records, result.Total, result.Page, result.Limit)
}

// ListOverdue 逾期跟进
func (fc *FollowUpController) ListOverdue(c *gin.Context) {
	filter, page, err := fc.parseListQuery(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if c.Query("sortBy") == "" {
		page.SortBy = ""
	}

	result, err := fc.engine.ListOverdue(c.Request.Context(), filter, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.PaginatedResponse(c, result.Records, result.Total, result.Page, result.Limit)
}

// ListUpcoming 即将到期的跟进
func (fc *FollowUpController) ListUpcoming(c *gin.Context) {
	days, err := utils.QueryInt(c, "days", 7)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	filter, page, err := fc.parseListQuery(c)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if c.Query("sortBy") == "" {
		page.SortBy = ""
	}

	result, err := fc.engine.ListUpcoming(c.Request.Context(), int(days), filter, page)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.PaginatedResponse(c, result.Records, result.Total, result.Page, result.Limit)
}

// GetStats 跟进统计
func (fc *FollowUpController) GetStats(c *gin.Context) {
	scope := models.StatsScope{
		Module:     models.Module(c.Query("module")),
		AssignedTo: c.Query("assignedTo"),
		RecordType: models.RecordType(c.Query("recordType")),
	}
	if scope.Module != "" && !scope.Module.IsValid() {
		utils.HandleError(c, utils.CreateValidationError("未知的模块: "+string(scope.Module)))
		return
	}
	if scope.RecordType != "" && !scope.RecordType.IsValid() {
		utils.HandleError(c, utils.CreateValidationError("未知的记录类型: "+string(scope.RecordType)))
		return
	}

	stats, err := fc.stats.Stats(c.Request.Context(), scope)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, stats, "")
}

// GetByRecord 业务记录当前的跟进
func (fc *FollowUpController) GetByRecord(c *gin.Context) {
	rec, err := fc.engine.GetByRecord(c.Request.Context(), models.RecordType(c.Param("recordType")), c.Param("recordId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "")
}

// GetHistory 业务记录的跟进历史
func (fc *FollowUpController) GetHistory(c *gin.Context) {
	entries, err := fc.engine.History(c.Request.Context(), models.RecordType(c.Param("recordType")), c.Param("recordId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, entries, "")
}

// GetFollowUp 跟进详情
func (fc *FollowUpController) GetFollowUp(c *gin.Context) {
	rec, err := fc.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "")
}

// UpdateFollowUp 编辑跟进
func (fc *FollowUpController) UpdateFollowUp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req updateFollowUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.HandleError(c, utils.CreateValidationError("无效的请求数据"))
		return
	}

	patch := models.UpdateFollowUpInput{
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		Status:             req.Status,
		AssignedTo:         req.AssignedTo,
		WardNo:             req.WardNo,
		Habitation:         req.Habitation,
		ProjectResponsible: req.ProjectResponsible,
		Tags:               req.Tags,
		Category:           req.Category,
	}
	if req.FollowUpDate != nil {
		due, err := utils.ParseDate(*req.FollowUpDate, fc.loc)
		if err != nil {
			utils.HandleError(c, err)
			return
		}
		patch.FollowUpDate = &due
	}

	rec, err := fc.engine.Update(c.Request.Context(), c.Param("id"), patch, user.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "跟进记录更新成功")
}

// AddMonthlyUpdate 追加月度跟进
func (fc *FollowUpController) AddMonthlyUpdate(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var input models.MonthlyUpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.HandleError(c, utils.CreateValidationError("无效的请求数据"))
		return
	}
	input.UpdatedBy = user.ID

	rec, err := fc.engine.AddMonthlyUpdate(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "月度跟进已添加")
}

// CompleteFollowUp 完成跟进
func (fc *FollowUpController) CompleteFollowUp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	req := bindNotes(c)

	rec, err := fc.engine.Complete(c.Request.Context(), c.Param("id"), req.Notes, user.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "跟进已完成")
}

// CompleteAndContinue 完成跟进并创建下一期
func (fc *FollowUpController) CompleteAndContinue(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	req := bindNotes(c)

	result, err := fc.engine.CompleteAndContinue(c.Request.Context(), c.Param("id"), req.Notes, user.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if result.Err != nil {
		utils.SuccessResponse(c, result, "跟进已完成，续建下一期失败")
		return
	}
	utils.SuccessResponse(c, result, "跟进已完成，已创建下一期", http.StatusCreated)
}

// CancelFollowUp 取消跟进
func (fc *FollowUpController) CancelFollowUp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	req := bindNotes(c)
	reason := req.Reason
	if reason == "" {
		reason = req.Notes
	}

	rec, err := fc.engine.Cancel(c.Request.Context(), c.Param("id"), reason, user.ID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, rec, "跟进已取消")
}

// DeleteFollowUp 软删除跟进
func (fc *FollowUpController) DeleteFollowUp(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if _, err := fc.engine.SoftDelete(c.Request.Context(), c.Param("id"), user.ID); err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.SuccessResponse(c, nil, "跟进记录已删除")
}

// bindNotes 请求体可以为空
func bindNotes(c *gin.Context) notesRequest {
	var req notesRequest
	if c.Request.ContentLength != 0 {
		_ = c.ShouldBindJSON(&req)
	}
	return req
}

func currentUser(c *gin.Context) (*utils.LoginUser, bool) {
	user, err := utils.GetUser(c)
	if err != nil {
		utils.HandleError(c, utils.CreateUnauthorizedError())
		return nil, false
	}
	return user, true
}

// parseListQuery 解析列表筛选和分页参数
func (fc *FollowUpController) parseListQuery(c *gin.Context) (models.FollowUpFilter, models.Pagination, error) {
	var filter models.FollowUpFilter
	var page models.Pagination

	filter.RecordType = models.RecordType(c.Query("recordType"))
	if filter.RecordType != "" && !filter.RecordType.IsValid() {
		return filter, page, utils.CreateValidationError("未知的记录类型: " + string(filter.RecordType))
	}
	filter.Module = models.Module(c.Query("module"))
	if filter.Module != "" && !filter.Module.IsValid() {
		return filter, page, utils.CreateValidationError("未知的模块: " + string(filter.Module))
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := models.FollowUpStatus(strings.TrimSpace(s))
			if !st.IsValid() {
				return filter, page, utils.CreateValidationError("无效的状态: " + string(st))
			}
			filter.Statuses = append(filter.Statuses, st)
		}
	}
	filter.Priority = models.FollowUpPriority(c.Query("priority"))
	if filter.Priority != "" && !filter.Priority.IsValid() {
		return filter, page, utils.CreateValidationError("无效的优先级: " + string(filter.Priority))
	}
	filter.RecordID = c.Query("recordId")
	filter.AssignedTo = c.Query("assignedTo")
	filter.WardNo = c.Query("wardNo")
	filter.Habitation = c.Query("habitation")
	filter.Search = strings.TrimSpace(c.Query("search"))

	if raw := c.Query("dateFrom"); raw != "" {
		from, err := utils.ParseDate(raw, fc.loc)
		if err != nil {
			return filter, page, err
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("dateTo"); raw != "" {
		to, err := utils.ParseDate(raw, fc.loc)
		if err != nil {
			return filter, page, err
		}
		// 只给日期时包含当天
		if len(strings.TrimSpace(raw)) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		filter.DateTo = &to
	}

	var err error
	if filter.Overdue, err = utils.QueryBool(c, "overdue"); err != nil {
		return filter, page, err
	}
	if filter.IsActive, err = utils.QueryBool(c, "isActive"); err != nil {
		return filter, page, err
	}

	if page.Page, err = utils.QueryInt(c, "page", 1); err != nil {
		return filter, page, err
	}
	if page.Page > models.MaxPage {
		return filter, page, utils.CreateValidationError(fmt.Sprintf("页码不能超过 %d", models.MaxPage))
	}
	if page.Limit, err = utils.QueryInt(c, "limit", 10); err != nil {
		return filter, page, err
	}
	page.SortBy = c.DefaultQuery("sortBy", "createdAt")
	page.SortOrder = -1
	if strings.EqualFold(c.Query("sortOrder"), "asc") || c.Query("sortOrder") == "1" {
		page.SortOrder = 1
	}
	return filter, page, nil
}
