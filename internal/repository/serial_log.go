package repository

import (
	"time"

	"github.com/wfunc/microinject/internal/models"
	"gorm.io/gorm"
)

// SerialLogRepository 串口日志仓库
type SerialLogRepository struct {
	db *gorm.DB
}

// NewSerialLogRepository 创建串口日志仓库
func NewSerialLogRepository(db *gorm.DB) *SerialLogRepository {
	return &SerialLogRepository{
		db: db,
	}
}

// Create 创建日志记录
func (r *SerialLogRepository) Create(log *models.SerialLog) error {
	return r.db.Create(log).Error
}

// CreateBatch 批量创建日志记录
func (r *SerialLogRepository) CreateBatch(logs []*models.SerialLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 100).Error
}

// GetByID 根据ID获取日志
func (r *SerialLogRepository) GetByID(id uint) (*models.SerialLog, error) {
	var log models.SerialLog
	err := r.db.First(&log, id).Error
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// GetBySessionID 根据连接会话ID获取日志
func (r *SerialLogRepository) GetBySessionID(sessionID string) ([]*models.SerialLog, error) {
	var logs []*models.SerialLog
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// Query 查询日志
func (r *SerialLogRepository) Query(query *models.SerialLogQuery) ([]*models.SerialLog, int64, error) {
	db := r.db.Model(&models.SerialLog{})

	// 构建查询条件
	if query.Direction != "" {
		db = db.Where("direction = ?", query.Direction)
	}
	if query.Level != "" {
		db = db.Where("level = ?", query.Level)
	}
	if query.Port != "" {
		db = db.Where("port = ?", query.Port)
	}
	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if query.Contains != "" {
		db = db.Where("text LIKE ?", "%"+query.Contains+"%")
	}
	if query.StartTime != nil {
		db = db.Where("created_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("created_at <= ?", *query.EndTime)
	}

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 排序
	orderBy := query.OrderBy
	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	db = db.Order(orderBy)

	// 分页
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}

	var logs []*models.SerialLog
	if err := db.Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}

// GetStats 获取统计信息
func (r *SerialLogRepository) GetStats(startTime, endTime *time.Time) (*models.SerialLogStats, error) {
	stats := &models.SerialLogStats{}
	db := r.db.Model(&models.SerialLog{})

	if startTime != nil {
		db = db.Where("created_at >= ?", *startTime)
	}
	if endTime != nil {
		db = db.Where("created_at <= ?", *endTime)
	}

	if err := db.Count(&stats.TotalCount).Error; err != nil {
		return nil, err
	}

	if err := r.db.Model(&models.SerialLog{}).
		Where("direction = ?", models.SerialDirectionTx).
		Count(&stats.TotalTx).Error; err != nil {
		return nil, err
	}
	stats.TotalRx = stats.TotalCount - stats.TotalTx

	if err := r.db.Model(&models.SerialLog{}).
		Where("error_msg IS NOT NULL AND error_msg != ''").
		Count(&stats.TotalErrors).Error; err != nil {
		return nil, err
	}

	type byteStats struct {
		TotalBytes int64
	}
	var bs byteStats
	if err := r.db.Model(&models.SerialLog{}).
		Select("COALESCE(SUM(bytes_count), 0) as total_bytes").
		Scan(&bs).Error; err != nil {
		return nil, err
	}
	stats.TotalBytes = bs.TotalBytes

	return stats, nil
}

// DeleteBefore 删除某时刻之前的日志（保留期清理）
func (r *SerialLogRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&models.SerialLog{})
	return result.RowsAffected, result.Error
}
