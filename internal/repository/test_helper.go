package repository

import (
	"time"

	"github.com/wfunc/microinject/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试套件设置内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	err = db.AutoMigrate(
		&models.SerialLog{},
		&models.MoveRecord{},
	)
	if err != nil {
		panic(err)
	}

	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// CreateTestSerialLog 创建测试串口日志
func CreateTestSerialLog(direction models.SerialDirection, text, sessionID string) *models.SerialLog {
	return &models.SerialLog{
		Direction: direction,
		Level:     models.SerialLogLevelInfo,
		Port:      "/dev/ttyUSB0",
		SessionID: sessionID,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

// CreateTestMoveRecord 创建测试运动记录
func CreateTestMoveRecord(kind models.MoveKind, sessionID string) *models.MoveRecord {
	return &models.MoveRecord{
		Kind:            kind,
		Port:            "/dev/ttyUSB0",
		SessionID:       sessionID,
		Forward:         true,
		Distance:        2048,
		Speed:           300,
		Accel:           100,
		ExpectedSeconds: 9.827,
		StartedAt:       time.Now(),
	}
}
