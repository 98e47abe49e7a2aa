package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/rfid-gateway/internal/connector"
	"github.com/taoyao-code/rfid-gateway/internal/inventory"
	"github.com/taoyao-code/rfid-gateway/internal/protocol/r200"
	pgstorage "github.com/taoyao-code/rfid-gateway/internal/storage/pg"
)

// ReaderService inventory.Service 中对外暴露的操作
type ReaderService interface {
	ReaderID() string
	ModuleInfo(ctx context.Context) (connector.ModuleInfo, error)
	Power(ctx context.Context) (r200.Power, error)
	SetPower(ctx context.Context, p r200.Power) (r200.Power, error)
	Channel(ctx context.Context) (uint8, error)
	SetChannel(ctx context.Context, index uint8) error
	Region(ctx context.Context) (r200.Region, error)
	SetRegion(ctx context.Context, r r200.Region) error
	Frequency(ctx context.Context) (float64, error)
	Inventory(ctx context.Context) (inventory.Result, error)
	StartStreaming(ctx context.Context, count uint16) (uuid.UUID, error)
	StopStreaming(ctx context.Context) (inventory.Status, error)
	Status() inventory.Status
}

// ObservationQuery 历史标签查询，由 pg.Repository 实现
type ObservationQuery interface {
	RecentObservations(ctx context.Context, f pgstorage.ObservationFilter) ([]pgstorage.Observation, error)
}

// ReaderHandler 读写器 API 处理器
type ReaderHandler struct {
	svc    ReaderService
	query  ObservationQuery
	logger *zap.Logger
}

// NewReaderHandler 创建处理器；query 为空时历史查询返回 503
func NewReaderHandler(svc ReaderService, query ObservationQuery, logger *zap.Logger) *ReaderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReaderHandler{svc: svc, query: query, logger: logger}
}

// PowerRequest 设置功率，二选一
type PowerRequest struct {
	DBm   *float64 `json:"dbm"`
	Value *uint16  `json:"value"` // 0.01 dBm
}

// ChannelRequest 设置信道
type ChannelRequest struct {
	Index *uint8 `json:"index" binding:"required"`
}

// RegionRequest 设置地区：名称（china900/china800/us/eu/korea）或代码
type RegionRequest struct {
	Region string `json:"region" binding:"required"`
}

// StreamRequest 开始连续盘点
type StreamRequest struct {
	Count uint16 `json:"count"`
}

func powerBody(p r200.Power) gin.H {
	return gin.H{"value": uint16(p), "dbm": p.DBm()}
}

// writeError 把读写器错误映射为 HTTP 状态码
func (h *ReaderHandler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	var (
		modErr *r200.ModuleError
		trErr  *connector.TransportError
	)
	switch {
	case errors.Is(err, connector.ErrStreaming):
		status, code = http.StatusConflict, "streaming"
	case errors.Is(err, inventory.ErrNotStreaming):
		status, code = http.StatusConflict, "not_streaming"
	case errors.Is(err, connector.ErrTimeout):
		status, code = http.StatusGatewayTimeout, "reader_timeout"
	case errors.As(err, &modErr):
		status, code = http.StatusBadGateway, "module_error"
	case errors.As(err, &trErr), errors.Is(err, connector.ErrClosed):
		status, code = http.StatusServiceUnavailable, "reader_unavailable"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		status, code = http.StatusGatewayTimeout, "canceled"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("reader request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	body := gin.H{"error": code, "message": err.Error()}
	if modErr != nil {
		body["module_code"] = modErr.Code
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": msg})
}

// GetInfo 模块信息
// @Summary 查询模块信息
// @Description 硬件版本、软件版本、制造商与工作地区
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} connector.ModuleInfo
// @Failure 504 {object} map[string]interface{} "模块无应答"
// @Router /api/v1/reader/info [get]
func (h *ReaderHandler) GetInfo(c *gin.Context) {
	info, err := h.svc.ModuleInfo(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"readerId":     h.svc.ReaderID(),
		"hardware":     info.Hardware,
		"software":     info.Software,
		"manufacturer": info.Manufacturer,
		"region":       info.Region.String(),
	})
}

// GetPower 查询发射功率
// @Summary 查询发射功率
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{} "value 单位 0.01dBm"
// @Router /api/v1/reader/power [get]
func (h *ReaderHandler) GetPower(c *gin.Context) {
	p, err := h.svc.Power(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, powerBody(p))
}

// SetPower 设置发射功率
// @Summary 设置发射功率
// @Tags 读写器
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body PowerRequest true "dbm 或 value 二选一"
// @Success 200 {object} map[string]interface{} "模块实际生效的功率"
// @Router /api/v1/reader/power [put]
func (h *ReaderHandler) SetPower(c *gin.Context) {
	var req PowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	var p r200.Power
	switch {
	case req.Value != nil:
		p = r200.Power(*req.Value)
	case req.DBm != nil && *req.DBm > r200.MaxPowerDBm:
		badRequest(c, fmt.Sprintf("dbm must not exceed %.2f", r200.MaxPowerDBm))
		return
	case req.DBm != nil && *req.DBm > 0:
		p = r200.PowerFromDBm(*req.DBm)
	default:
		badRequest(c, "dbm or value is required")
		return
	}
	applied, err := h.svc.SetPower(c.Request.Context(), p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, powerBody(applied))
}

// GetChannel 查询信道
// @Summary 查询工作信道
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reader/channel [get]
func (h *ReaderHandler) GetChannel(c *gin.Context) {
	ch, err := h.svc.Channel(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": ch})
}

// SetChannel 设置信道
// @Summary 设置工作信道
// @Tags 读写器
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body ChannelRequest true "信道索引"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reader/channel [put]
func (h *ReaderHandler) SetChannel(c *gin.Context) {
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.SetChannel(c.Request.Context(), *req.Index); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": *req.Index})
}

// GetRegion 查询地区
// @Summary 查询工作地区
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reader/region [get]
func (h *ReaderHandler) GetRegion(c *gin.Context) {
	r, err := h.svc.Region(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": r.String(), "code": uint8(r)})
}

// SetRegion 设置地区
// @Summary 设置工作地区
// @Tags 读写器
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body RegionRequest true "地区名称或代码"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reader/region [put]
func (h *ReaderHandler) SetRegion(c *gin.Context) {
	var req RegionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := parseRegion(req.Region)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.SetRegion(c.Request.Context(), r); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"region": r.String(), "code": uint8(r)})
}

func parseRegion(s string) (r200.Region, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return r200.Region(n), nil
	}
	return r200.ParseRegion(s)
}

// GetFrequency 当前工作频率
// @Summary 查询工作频率
// @Description 按地区与信道换算中心频率（MHz）
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reader/frequency [get]
func (h *ReaderHandler) GetFrequency(c *gin.Context) {
	mhz, err := h.svc.Frequency(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mhz": mhz})
}

// Inventory 单次盘点
// @Summary 单次盘点
// @Description 执行一次单次轮询并返回读到的标签（不去重）
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} inventory.Result
// @Router /api/v1/reader/inventory [post]
func (h *ReaderHandler) Inventory(c *gin.Context) {
	res, err := h.svc.Inventory(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessionId": res.SessionID,
		"count":     len(res.Observations),
		"tags":      res.Observations,
	})
}

// StartStream 开始连续盘点
// @Summary 开始连续盘点
// @Description 标签经 /ws/tags 与已配置的下游推送
// @Tags 读写器
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body StreamRequest false "轮询次数，缺省使用配置值"
// @Success 202 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{} "已在盘点"
// @Router /api/v1/reader/stream [post]
func (h *ReaderHandler) StartStream(c *gin.Context) {
	var req StreamRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
	}
	id, err := h.svc.StartStreaming(c.Request.Context(), req.Count)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": id})
}

// StopStream 停止连续盘点
// @Summary 停止连续盘点
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} inventory.Status
// @Failure 409 {object} map[string]interface{} "未在盘点"
// @Router /api/v1/reader/stream [delete]
func (h *ReaderHandler) StopStream(c *gin.Context) {
	st, err := h.svc.StopStreaming(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetStatus 服务状态
// @Summary 查询盘点状态
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} inventory.Status
// @Router /api/v1/reader/status [get]
func (h *ReaderHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// ListObservations 历史标签
// @Summary 查询历史标签
// @Tags 读写器
// @Produce json
// @Security ApiKeyAuth
// @Param epc query string false "EPC（大写十六进制）"
// @Param session query string false "会话ID"
// @Param since query string false "起始时间 RFC3339"
// @Param limit query int false "条数(默认100,最大1000)"
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{} "未启用数据库"
// @Router /api/v1/reader/observations [get]
func (h *ReaderHandler) ListObservations(c *gin.Context) {
	if h.query == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage_disabled", "message": "database is not enabled"})
		return
	}
	f := pgstorage.ObservationFilter{
		ReaderID: h.svc.ReaderID(),
		EPC:      strings.ToUpper(c.Query("epc")),
	}
	if v := c.Query("session"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(c, "invalid session id")
			return
		}
		f.SessionID = id
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			badRequest(c, "since must be RFC3339")
			return
		}
		f.Since = t
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		f.Limit = n
	}
	list, err := h.query.RecentObservations(c.Request.Context(), f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "observations": list})
}
