// Package httpapi 提供只读的检查接口
// 规则与记录的唯一写入口是操作者命令面,HTTP 层不做任何变更
package httpapi

import (
	"net/http"
	"strconv"

	"watch-gateway/internal/recorder"
	"watch-gateway/internal/rules"

	"github.com/gin-gonic/gin"
)

// ==================== 常量定义 ====================

const (
	responseCodeOK    = 0
	responseCodeError = 1

	defaultRecordLimit = 50
	maxRecordLimit     = 500
)

// ==================== 数据模型定义 ====================

// UnifiedResponse 统一的 API 响应格式
type UnifiedResponse struct {
	Code int         `json:"code"`
	Data interface{} `json:"data,omitempty"`
	Msg  string      `json:"msg"`
}

// RulesQueryRequest 规则查询请求参数
type RulesQueryRequest struct {
	Owner int64 `form:"owner" binding:"required"`
}

// OwnerRulesResponse 单配置者规则响应
type OwnerRulesResponse struct {
	Owner         int64       `json:"owner"`
	NotifyTargets []int64     `json:"notify_targets"`
	Rules         interface{} `json:"rules"`
}

// AdminsResponse 管理员列表响应
type AdminsResponse struct {
	SuperAdmins   []int64 `json:"super_admins"`
	DynamicAdmins []int64 `json:"dynamic_admins"`
}

// ==================== Handler 处理器 ====================

// Handler 检查接口处理器
type Handler struct {
	rules   *rules.Store
	admins  *rules.AdminSet
	records recorder.Store
}

// NewHandler 创建检查接口处理器
func NewHandler(ruleStore *rules.Store, adminSet *rules.AdminSet, records recorder.Store) *Handler {
	return &Handler{
		rules:   ruleStore,
		admins:  adminSet,
		records: records,
	}
}

// HandleHealthz GET /healthz
func (handler *Handler) HandleHealthz(context *gin.Context) {
	sendSuccessResponse(context, gin.H{"status": "ok"})
}

// HandleQueryRules GET /v1/rules?owner=<id>
func (handler *Handler) HandleQueryRules(context *gin.Context) {
	var request RulesQueryRequest
	if err := context.ShouldBindQuery(&request); err != nil {
		sendErrorResponse(context, http.StatusBadRequest, "owner 参数缺失或非法")
		return
	}

	sendSuccessResponse(context, OwnerRulesResponse{
		Owner:         request.Owner,
		NotifyTargets: handler.rules.ListNotifyTargets(request.Owner),
		Rules:         handler.rules.ListRules(request.Owner),
	})
}

// HandleQueryAdmins GET /v1/admins
func (handler *Handler) HandleQueryAdmins(context *gin.Context) {
	superAdmins, dynamicAdmins := handler.admins.ListAdmins()
	sendSuccessResponse(context, AdminsResponse{
		SuperAdmins:   superAdmins,
		DynamicAdmins: dynamicAdmins,
	})
}

// HandleQueryRecords GET /v1/records?limit=<n>
func (handler *Handler) HandleQueryRecords(context *gin.Context) {
	limit := parseRecordLimit(context.Query("limit"))

	records, err := handler.records.QueryRecords(context.Request.Context(), limit)
	if err != nil {
		sendErrorResponse(context, http.StatusInternalServerError, err.Error())
		return
	}
	sendSuccessResponse(context, records)
}

// ==================== 辅助函数 ====================

// parseRecordLimit 解析并钳制记录查询条数
func parseRecordLimit(raw string) int64 {
	if raw == "" {
		return defaultRecordLimit
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		return defaultRecordLimit
	}
	if limit > maxRecordLimit {
		return maxRecordLimit
	}
	return limit
}

func sendSuccessResponse(context *gin.Context, data interface{}) {
	context.JSON(http.StatusOK, UnifiedResponse{
		Code: responseCodeOK,
		Data: data,
		Msg:  "ok",
	})
}

func sendErrorResponse(context *gin.Context, httpStatus int, message string) {
	context.JSON(httpStatus, UnifiedResponse{
		Code: responseCodeError,
		Msg:  message,
	})
}
