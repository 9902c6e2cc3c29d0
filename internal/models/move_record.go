package models

import (
	"time"

	"gorm.io/gorm"
)

// MoveKind 运动类型
type MoveKind string

const (
	MoveKindManual  MoveKind = "MANUAL"  // 手动移动
	MoveKindProgram MoveKind = "PROGRAM" // 程序运行
)

// MoveOutcome 运动结局
type MoveOutcome string

const (
	MoveOutcomeDone         MoveOutcome = "DONE"         // 正常完成
	MoveOutcomeAborted      MoveOutcome = "ABORTED"      // 被中止
	MoveOutcomeDisconnected MoveOutcome = "DISCONNECTED" // 运动中断开
)

// MoveRecord 一次运动的历史记录
type MoveRecord struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Kind      MoveKind    `gorm:"type:varchar(10);index;not null" json:"kind"`
	Outcome   MoveOutcome `gorm:"type:varchar(15);index" json:"outcome"`
	Port      string      `gorm:"type:varchar(100);index" json:"port,omitempty"`
	SessionID string      `gorm:"type:varchar(100);index" json:"session_id,omitempty"`

	// 手动移动的参数（程序运行时为 0）
	Forward  bool `json:"forward"`
	Distance int  `json:"distance"`
	Speed    int  `json:"speed"`
	Accel    int  `json:"accel"`

	// 程序运行的规模
	StepCount int `json:"step_count"`

	// 时间
	ExpectedSeconds float64    `gorm:"type:decimal(10,3)" json:"expected_seconds"` // 理论时长
	StartedAt       time.Time  `gorm:"index" json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}

// TableName 指定表名
func (MoveRecord) TableName() string {
	return "move_records"
}

// BeforeCreate 创建前的钩子
func (m *MoveRecord) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.StartedAt.IsZero() {
		m.StartedAt = m.CreatedAt
	}
	return nil
}

// ActualSeconds 实际耗时，未结束返回 0
func (m *MoveRecord) ActualSeconds() float64 {
	if m.FinishedAt == nil {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt).Seconds()
}

// MoveRecordQuery 查询参数
type MoveRecordQuery struct {
	Kind      MoveKind    `json:"kind,omitempty"`
	Outcome   MoveOutcome `json:"outcome,omitempty"`
	SessionID string      `json:"session_id,omitempty"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Limit     int         `json:"limit,omitempty"`
	Offset    int         `json:"offset,omitempty"`
}
