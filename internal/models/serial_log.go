package models

import (
	"time"

	"gorm.io/gorm"
)

// SerialDirection 串口流量方向
type SerialDirection string

const (
	SerialDirectionTx SerialDirection = "TX" // 主机发往固件
	SerialDirectionRx SerialDirection = "RX" // 固件回报
)

// SerialLogLevel 日志级别
type SerialLogLevel string

const (
	SerialLogLevelInfo  SerialLogLevel = "INFO"
	SerialLogLevelDebug SerialLogLevel = "DEBUG"
	SerialLogLevelWarn  SerialLogLevel = "WARN"
	SerialLogLevelError SerialLogLevel = "ERROR"
)

// SerialLog 串口通信日志
type SerialLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 基础信息
	Direction SerialDirection `gorm:"type:varchar(10);index;not null" json:"direction"` // TX/RX
	Level     SerialLogLevel  `gorm:"type:varchar(10);default:INFO" json:"level"`       // 日志级别
	Port      string          `gorm:"type:varchar(100);index" json:"port,omitempty"`    // 串口端口
	SessionID string          `gorm:"type:varchar(100);index" json:"session_id,omitempty"` // 连接会话ID

	// 数据内容
	Text       string `gorm:"type:text" json:"text"`              // 行文本（已去换行）
	IsPrompt   bool   `gorm:"index" json:"is_prompt"`             // 是否提示符片段
	BytesCount int    `gorm:"default:0" json:"bytes_count"`       // 字节数
	Timestamp  int64  `gorm:"index" json:"timestamp"`             // Unix时间戳（毫秒）

	// 额外信息
	ErrorMsg string `gorm:"type:text" json:"error_msg,omitempty"` // 错误信息
}

// TableName 指定表名
func (SerialLog) TableName() string {
	return "serial_logs"
}

// BeforeCreate 创建前的钩子
func (s *SerialLog) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if s.Timestamp == 0 {
		s.Timestamp = time.Now().UnixMilli()
	}
	if s.BytesCount == 0 {
		s.BytesCount = len(s.Text)
	}
	return nil
}

// SerialLogQuery 查询参数
type SerialLogQuery struct {
	Direction SerialDirection `json:"direction,omitempty"`
	Level     SerialLogLevel  `json:"level,omitempty"`
	Port      string          `json:"port,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Contains  string          `json:"contains,omitempty"` // 文本模糊匹配
	StartTime *time.Time      `json:"start_time,omitempty"`
	EndTime   *time.Time      `json:"end_time,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
	OrderBy   string          `json:"order_by,omitempty"`
}

// SerialLogStats 统计信息
type SerialLogStats struct {
	TotalCount  int64 `json:"total_count"`
	TotalTx     int64 `json:"total_tx"`
	TotalRx     int64 `json:"total_rx"`
	TotalErrors int64 `json:"total_errors"`
	TotalBytes  int64 `json:"total_bytes"`
}
