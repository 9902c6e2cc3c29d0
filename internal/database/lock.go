package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wfunc/microinject/internal/logger"
	"go.uber.org/zap"
)

const lockStaleAfter = 5 * time.Minute

// acquireMigrationLock 以独占文件作迁移锁，最多等 30 秒
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := dbPath + ".migration.lock"

	for i := 0; i < 30; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			return lockFile, nil
		}

		// 过期锁直接清掉
		if info, statErr := os.Stat(lockPath); statErr == nil {
			if time.Since(info.ModTime()) > lockStaleAfter {
				logger.Warn("迁移锁文件过期，删除重试", zap.String("lock", lockPath))
				os.Remove(lockPath)
				continue
			}
		}
		time.Sleep(time.Second)
	}
	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在迁移")
}

// releaseMigrationLock 释放并删除锁文件
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}
	path := lockFile.Name()
	lockFile.Close()
	if err := os.Remove(path); err != nil {
		logger.Warn("删除迁移锁失败", zap.String("lock", path), zap.Error(err))
	}
}

// getDBPath 从当前连接取 sqlite 文件路径，非 sqlite 返回空串（不用文件锁）
func getDBPath() string {
	if DB == nil {
		return ""
	}
	switch DB.Dialector.Name() {
	case "sqlite", "sqlite3":
		if sqlDB, err := DB.DB(); err == nil {
			row := sqlDB.QueryRow("PRAGMA database_list")
			var seq int
			var name, file string
			if err := row.Scan(&seq, &name, &file); err == nil && file != "" {
				return file
			}
		}
		return "./data/microinject.db"
	default:
		return ""
	}
}

// CleanupStaleLocks 启动时清理数据目录下的过期锁
func CleanupStaleLocks() {
	matches, err := filepath.Glob("./data/*.migration.lock")
	if err != nil {
		return
	}
	for _, lock := range matches {
		info, err := os.Stat(lock)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > lockStaleAfter {
			logger.Info("清理过期迁移锁", zap.String("lock", strings.TrimPrefix(lock, "./")))
			os.Remove(lock)
		}
	}
}
