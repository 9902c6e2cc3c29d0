package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/microinject/internal/models"
	"github.com/wfunc/microinject/internal/service"
)

// SerialLogHandler 串口日志API
type SerialLogHandler struct {
	service *service.SerialLogService
}

// NewSerialLogHandler 创建串口日志API
func NewSerialLogHandler(service *service.SerialLogService) *SerialLogHandler {
	return &SerialLogHandler{
		service: service,
	}
}

// RegisterRoutes 注册路由
func (api *SerialLogHandler) RegisterRoutes(router *gin.RouterGroup) {
	logs := router.Group("/serial-logs")
	{
		logs.GET("", api.QueryLogs)            // 查询日志列表
		logs.GET("/stats", api.GetStats)       // 获取统计信息
		logs.POST("/cleanup", api.CleanupLogs) // 清理旧日志
		logs.GET("/export", api.ExportLogs)    // 导出日志
	}
}

// parseQuery 解析通用查询参数
func (api *SerialLogHandler) parseQuery(c *gin.Context) *models.SerialLogQuery {
	query := &models.SerialLogQuery{}

	if direction := c.Query("direction"); direction != "" {
		query.Direction = models.SerialDirection(direction)
	}
	if level := c.Query("level"); level != "" {
		query.Level = models.SerialLogLevel(level)
	}
	query.Port = c.Query("port")
	query.SessionID = c.Query("session_id")
	query.Contains = c.Query("contains")

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

	return query
}

// QueryLogs 查询日志列表
func (api *SerialLogHandler) QueryLogs(c *gin.Context) {
	query := api.parseQuery(c)

	// 分页参数
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	query.OrderBy = c.DefaultQuery("order_by", "created_at DESC")

	logs, total, err := api.service.Query(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "查询失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   logs,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetStats 获取统计信息
func (api *SerialLogHandler) GetStats(c *gin.Context) {
	var startTime, endTime *time.Time

	if start := c.Query("start_time"); start != "" {
		if t, err := time.Parse(time.RFC3339, start); err == nil {
			startTime = &t
		}
	}
	if end := c.Query("end_time"); end != "" {
		if t, err := time.Parse(time.RFC3339, end); err == nil {
			endTime = &t
		}
	}

	stats, err := api.service.GetStats(startTime, endTime)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "获取统计失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CleanupLogs 清理旧日志
func (api *SerialLogHandler) CleanupLogs(c *gin.Context) {
	retentionDays, _ := strconv.Atoi(c.DefaultPostForm("retention_days", "30"))
	if retentionDays < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "保留天数必须大于0",
		})
		return
	}

	count, err := api.service.CleanupOldLogs(retentionDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "清理失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":        "清理成功",
		"deleted":        count,
		"retention_days": retentionDays,
	})
}

// ExportLogs 导出日志
func (api *SerialLogHandler) ExportLogs(c *gin.Context) {
	query := api.parseQuery(c)

	// 导出限制
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "1000"))

	data, err := api.service.ExportLogs(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "导出失败",
			"message": err.Error(),
		})
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", "attachment; filename=serial_logs_export.json")
	c.Data(http.StatusOK, "application/json", data)
}
