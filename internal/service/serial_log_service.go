package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/wfunc/microinject/internal/logger"
	"github.com/wfunc/microinject/internal/models"
	"github.com/wfunc/microinject/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SerialLogService 串口日志服务
// 收发行先进内存缓冲，后台协程批量落库，不拖慢驱动
type SerialLogService struct {
	repo     *repository.SerialLogRepository
	logger   *zap.Logger
	mu       sync.Mutex
	buffer   []*models.SerialLog
	bufferCh chan *models.SerialLog
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSerialLogService 创建串口日志服务
func NewSerialLogService(db *gorm.DB) *SerialLogService {
	service := &SerialLogService{
		repo:     repository.NewSerialLogRepository(db),
		logger:   logger.GetLogger(),
		buffer:   make([]*models.SerialLog, 0, 100),
		bufferCh: make(chan *models.SerialLog, 1000),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	go service.backgroundWriter()

	return service
}

// backgroundWriter 后台批量写入协程
func (s *SerialLogService) backgroundWriter() {
	defer close(s.doneCh)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case log := <-s.bufferCh:
			s.mu.Lock()
			s.buffer = append(s.buffer, log)
			if len(s.buffer) >= 100 {
				s.flushBuffer()
			}
			s.mu.Unlock()

		case <-ticker.C:
			s.mu.Lock()
			s.flushBuffer()
			s.mu.Unlock()

		case <-s.stopCh:
			// 退出前把通道和缓冲清空
			for {
				select {
				case log := <-s.bufferCh:
					s.buffer = append(s.buffer, log)
				default:
					s.mu.Lock()
					s.flushBuffer()
					s.mu.Unlock()
					return
				}
			}
		}
	}
}

// flushBuffer 写入缓冲区的日志到数据库（持锁调用）
func (s *SerialLogService) flushBuffer() {
	if len(s.buffer) == 0 {
		return
	}

	if err := s.repo.CreateBatch(s.buffer); err != nil {
		s.logger.Error("批量写入串口日志失败", zap.Error(err))
	} else {
		s.logger.Debug("批量写入串口日志成功", zap.Int("count", len(s.buffer)))
	}

	s.buffer = s.buffer[:0]
}

// LogLine 记录一条收发行
func (s *SerialLogService) LogLine(direction models.SerialDirection, text, port, sessionID string, isPrompt bool) {
	s.enqueue(&models.SerialLog{
		Direction: direction,
		Level:     models.SerialLogLevelInfo,
		Port:      port,
		SessionID: sessionID,
		Text:      text,
		IsPrompt:  isPrompt,
		CreatedAt: time.Now(),
		Timestamp: time.Now().UnixMilli(),
	})
}

// LogError 记录错误行（断开原因等）
func (s *SerialLogService) LogError(errorMsg, port, sessionID string) {
	s.enqueue(&models.SerialLog{
		Direction: models.SerialDirectionRx,
		Level:     models.SerialLogLevelError,
		Port:      port,
		SessionID: sessionID,
		ErrorMsg:  errorMsg,
		CreatedAt: time.Now(),
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *SerialLogService) enqueue(log *models.SerialLog) {
	select {
	case s.bufferCh <- log:
	default:
		s.logger.Warn("串口日志缓冲区满，丢弃日志")
	}
}

// Query 查询日志
func (s *SerialLogService) Query(query *models.SerialLogQuery) ([]*models.SerialLog, int64, error) {
	return s.repo.Query(query)
}

// GetStats 获取统计信息
func (s *SerialLogService) GetStats(startTime, endTime *time.Time) (*models.SerialLogStats, error) {
	return s.repo.GetStats(startTime, endTime)
}

// CleanupOldLogs 清理保留期之前的日志
func (s *SerialLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.repo.DeleteBefore(cutoff)
}

// ExportLogs 导出日志为JSON格式
func (s *SerialLogService) ExportLogs(query *models.SerialLogQuery) ([]byte, error) {
	logs, _, err := s.Query(query)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(logs, "", "  ")
}

// Close 关闭服务，等待缓冲写完
func (s *SerialLogService) Close() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(3 * time.Second):
		s.logger.Warn("串口日志服务关闭超时")
	}
}
