package database

import (
	"fmt"

	"github.com/wfunc/microinject/internal/logger"
	"github.com/wfunc/microinject/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// 清理过期锁文件，再拿迁移锁避免多进程同时迁移
	CleanupStaleLocks()
	dbPath := getDBPath()
	if dbPath != "" {
		lockFile, err := acquireMigrationLock(dbPath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	migrationModels := []interface{}{
		&models.SerialLog{},
		&models.MoveRecord{},
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("迁移表结构失败 %T: %w", model, err)
		}
	}

	if err := createIndexes(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成", zap.Int("tables", len(migrationModels)))
	return nil
}

// createIndexes 补充组合索引（AutoMigrate 只建单列索引）
func createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_serial_logs_session_ts ON serial_logs(session_id, timestamp)",
		"CREATE INDEX IF NOT EXISTS idx_move_records_kind_outcome ON move_records(kind, outcome)",
	}
	for _, stmt := range indexes {
		if err := DB.Exec(stmt).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("sql", stmt), zap.Error(err))
		}
	}
	return nil
}

// DropAllTables 删除全部表（仅测试用）
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return DB.Migrator().DropTable(&models.SerialLog{}, &models.MoveRecord{})
}
