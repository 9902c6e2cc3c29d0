package repository

import (
	"time"

	"github.com/wfunc/microinject/internal/models"
	"gorm.io/gorm"
)

// MoveRecordRepository 运动历史仓库
type MoveRecordRepository struct {
	db *gorm.DB
}

// NewMoveRecordRepository 创建运动历史仓库
func NewMoveRecordRepository(db *gorm.DB) *MoveRecordRepository {
	return &MoveRecordRepository{
		db: db,
	}
}

// Create 创建运动记录
func (r *MoveRecordRepository) Create(record *models.MoveRecord) error {
	return r.db.Create(record).Error
}

// GetByID 根据ID获取记录
func (r *MoveRecordRepository) GetByID(id uint) (*models.MoveRecord, error) {
	var record models.MoveRecord
	err := r.db.First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Finish 补写结局与结束时间
func (r *MoveRecordRepository) Finish(id uint, outcome models.MoveOutcome, finishedAt time.Time) error {
	return r.db.Model(&models.MoveRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"outcome":     outcome,
			"finished_at": finishedAt,
		}).Error
}

// Query 查询运动历史
func (r *MoveRecordRepository) Query(query *models.MoveRecordQuery) ([]*models.MoveRecord, int64, error) {
	db := r.db.Model(&models.MoveRecord{})

	if query.Kind != "" {
		db = db.Where("kind = ?", query.Kind)
	}
	if query.Outcome != "" {
		db = db.Where("outcome = ?", query.Outcome)
	}
	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("created_at DESC")
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var records []*models.MoveRecord
	if err := db.Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

// LatestUnfinished 当前会话里最近一条未写结局的记录
func (r *MoveRecordRepository) LatestUnfinished(sessionID string) (*models.MoveRecord, error) {
	var record models.MoveRecord
	err := r.db.Where("session_id = ?", sessionID).
		Where("outcome = ? OR outcome IS NULL", "").
		Order("created_at DESC").
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}
