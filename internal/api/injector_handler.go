package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wfunc/microinject/internal/config"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/hardware"
	"github.com/wfunc/microinject/internal/models"
	"github.com/wfunc/microinject/internal/service"
	"go.uber.org/zap"
)

// InjectorHandler 注射器控制处理器
type InjectorHandler struct {
	injector *service.InjectorService
	motion   *config.MotionConfig
	log      *zap.Logger
}

// NewInjectorHandler 创建注射器控制处理器
func NewInjectorHandler(injector *service.InjectorService, motion *config.MotionConfig, log *zap.Logger) *InjectorHandler {
	return &InjectorHandler{
		injector: injector,
		motion:   motion,
		log:      log,
	}
}

// ConnectRequest 连接请求。端口和波特率可省略，省略时使用配置默认值。
type ConnectRequest struct {
	Port string `json:"port"`
	Baud int    `json:"baud"`
}

// MoveRequest 运动请求。距离按优先级取 distance_steps、distance_mm、volume。
type MoveRequest struct {
	Forward       bool    `json:"forward"`
	DistanceSteps int     `json:"distance_steps"`
	DistanceMM    float64 `json:"distance_mm"`
	Volume        float64 `json:"volume"`
	VolumeUnit    string  `json:"volume_unit"` // nL / uL / mL
	Speed         int     `json:"speed" binding:"required"`
	Accel         int     `json:"accel"`
}

// Status 查询驱动快照
func (h *InjectorHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.injector.Status())
}

// Connect 打开串口连接
func (h *InjectorHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondAppError(c, errors.New(errors.ErrInvalidParam).WithCause(err))
			return
		}
	}

	if err := h.injector.Connect(req.Port, req.Baud); err != nil {
		h.log.Warn("串口连接失败",
			zap.String("port", req.Port),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "连接成功",
		"status":  h.injector.Status(),
	})
}

// Disconnect 断开串口连接
func (h *InjectorHandler) Disconnect(c *gin.Context) {
	if err := h.injector.Disconnect(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已断开连接"})
}

// Move 发起手动运动
func (h *InjectorHandler) Move(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondAppError(c, errors.New(errors.ErrInvalidParam).WithCause(err))
		return
	}

	step, err := h.resolveStep(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	expected, err := h.injector.ManualMove(step)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "运动已启动",
		"step":             step,
		"expected_seconds": expected.Seconds(),
	})
}

// Abort 紧急停止
func (h *InjectorHandler) Abort(c *gin.Context) {
	h.log.Info("收到停止请求", zap.String("ip", c.ClientIP()))
	if err := h.injector.Abort(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已发送停止命令"})
}

// GetProgram 获取程序镜像
func (h *InjectorHandler) GetProgram(c *gin.Context) {
	steps, total := h.injector.Program()

	c.JSON(http.StatusOK, gin.H{
		"steps":         steps,
		"count":         len(steps),
		"total_seconds": total.Seconds(),
	})
}

// AddStep 追加程序步
func (h *InjectorHandler) AddStep(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondAppError(c, errors.New(errors.ErrInvalidParam).WithCause(err))
		return
	}

	step, err := h.resolveStep(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.injector.AddStep(step); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "程序步已提交",
		"step":    step,
	})
}

// DeleteStep 删除指定程序步（序号从1开始）
func (h *InjectorHandler) DeleteStep(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondAppError(c, errors.New(errors.ErrInvalidIndex).WithCause(err))
		return
	}

	if err := h.injector.DeleteStep(index); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "程序步已删除",
		"index":   index,
	})
}

// ClearProgram 清空程序
func (h *InjectorHandler) ClearProgram(c *gin.Context) {
	if err := h.injector.ClearProgram(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "程序已清空"})
}

// RunProgram 运行程序
func (h *InjectorHandler) RunProgram(c *gin.Context) {
	expected, err := h.injector.RunProgram()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":          "程序已启动",
		"expected_seconds": expected.Seconds(),
	})
}

// RefreshProgram 向固件请求程序清单，重建本地镜像
func (h *InjectorHandler) RefreshProgram(c *gin.Context) {
	if err := h.injector.RefreshProgram(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "已请求程序清单"})
}

// QueryMoves 查询运动历史
func (h *InjectorHandler) QueryMoves(c *gin.Context) {
	query := &models.MoveRecordQuery{}

	if kind := c.Query("kind"); kind != "" {
		query.Kind = models.MoveKind(kind)
	}
	if outcome := c.Query("outcome"); outcome != "" {
		query.Outcome = models.MoveOutcome(outcome)
	}
	query.SessionID = c.Query("session_id")

	// 时间范围
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = &t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = &t
		}
	}

	// 分页参数
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, total, err := h.injector.QueryMoves(query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   records,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// resolveStep 把请求里的距离表达换算成步数
func (h *InjectorHandler) resolveStep(req *MoveRequest) (hardware.MotionStep, error) {
	step := hardware.MotionStep{
		Forward: req.Forward,
		Speed:   req.Speed,
		Accel:   req.Accel,
	}

	switch {
	case req.DistanceSteps > 0:
		step.Distance = req.DistanceSteps

	case req.DistanceMM > 0:
		step.Distance = hardware.MMToSteps(req.DistanceMM)

	case req.Volume > 0:
		scale, ok := hardware.VolumeScale(req.VolumeUnit)
		if !ok {
			return step, errors.Newf(errors.ErrInvalidParam, "未知的体积单位: %s", req.VolumeUnit)
		}

		cal := hardware.SyringeCalibration{
			VolumeUL: h.motion.SyringeVolumeUL,
			StrokeMM: h.motion.SyringeStrokeMM,
		}
		if !cal.Valid() {
			return step, errors.New(errors.ErrNotCalibrated)
		}

		step.Distance = cal.ULToSteps(req.Volume / scale)

	default:
		return step, errors.New(errors.ErrInvalidParam, "必须指定 distance_steps、distance_mm 或 volume 之一")
	}

	return step, nil
}

// respondError 把任意错误映射为JSON响应
func respondError(c *gin.Context, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		respondAppError(c, appErr)
		return
	}
	respondAppError(c, errors.Wrap(err, errors.ErrUnknown))
}

// respondAppError 按错误码映射HTTP状态
func respondAppError(c *gin.Context, appErr *errors.AppError) {
	c.JSON(appErr.HTTPStatus(), errors.NewErrorResponse(appErr, uuid.New().String()))
}
