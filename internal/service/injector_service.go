package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/hardware"
	"github.com/wfunc/microinject/internal/models"
	"github.com/wfunc/microinject/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Broadcaster 快照与原始行的推送出口（WebSocket集线器实现）
type Broadcaster interface {
	BroadcastJSON(v interface{})
}

// InjectorService 注射泵编排服务
// 驱动事件在这里分流：推送给WebSocket、落库串口日志、记录运动历史
type InjectorService struct {
	driver      *hardware.Driver
	serialLogs  *SerialLogService
	moves       *repository.MoveRecordRepository
	broadcaster Broadcaster
	logger      *zap.Logger

	mu            sync.Mutex
	sessionID     string
	currentMoveID uint
}

// NewInjectorService 创建编排服务并挂上驱动回调
func NewInjectorService(driver *hardware.Driver, db *gorm.DB, broadcaster Broadcaster, log *zap.Logger) *InjectorService {
	s := &InjectorService{
		driver:      driver,
		serialLogs:  NewSerialLogService(db),
		moves:       repository.NewMoveRecordRepository(db),
		broadcaster: broadcaster,
		logger:      log,
	}
	driver.SetListener(s.onDriverEvent)
	return s
}

// onDriverEvent 驱动事件分流
func (s *InjectorService) onDriverEvent(ev hardware.DriverEvent) {
	switch ev.Type {
	case hardware.DriverEventConnected:
		s.mu.Lock()
		s.sessionID = uuid.New().String()
		s.currentMoveID = 0
		s.mu.Unlock()
		s.logger.Info("注射泵已连接", zap.String("port", ev.Text))

	case hardware.DriverEventDisconnected:
		s.finishCurrentMove(models.MoveOutcomeDisconnected)
		s.logger.Info("注射泵已断开")

	case hardware.DriverEventRxLine:
		s.logLine(models.SerialDirectionRx, ev.Text, ev.IsPrompt)
		// 终止回报直接结算当前运动记录，
		// 中止可能发生在电机启动前，不能依赖状态变化
		upper := strings.ToUpper(ev.Text)
		switch {
		case strings.Contains(upper, "[ABORTED]"):
			s.finishCurrentMove(models.MoveOutcomeAborted)
		case strings.Contains(upper, "[DONE]"):
			s.finishCurrentMove(models.MoveOutcomeDone)
		}

	case hardware.DriverEventTxLine:
		s.logLine(models.SerialDirectionTx, ev.Text, false)
	}

	s.broadcast(ev)
}

func (s *InjectorService) logLine(direction models.SerialDirection, text string, isPrompt bool) {
	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	snap := s.driver.Snapshot()
	s.serialLogs.LogLine(direction, text, snap.Port, sessionID, isPrompt)
}

func (s *InjectorService) broadcast(ev hardware.DriverEvent) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastJSON(ev)
}

// Connect 打开串口
func (s *InjectorService) Connect(port string, baud int) error {
	return s.driver.Connect(port, baud)
}

// Disconnect 断开串口
func (s *InjectorService) Disconnect() error {
	return s.driver.Disconnect()
}

// Status 状态快照
func (s *InjectorService) Status() hardware.Snapshot {
	return s.driver.Snapshot()
}

// ManualMove 发起手动移动并登记运动历史
// 电机忙时直接拒绝，不把命令排给固件
func (s *InjectorService) ManualMove(step hardware.MotionStep) (time.Duration, error) {
	if err := s.ensureIdle(); err != nil {
		return 0, err
	}
	if err := s.driver.RequestManualMove(step); err != nil {
		return 0, err
	}

	expected := hardware.StepDuration(step)
	s.recordMove(&models.MoveRecord{
		Kind:            models.MoveKindManual,
		Forward:         step.Forward,
		Distance:        step.Distance,
		Speed:           step.Speed,
		Accel:           step.Accel,
		ExpectedSeconds: expected.Seconds(),
	})
	return expected, nil
}

// RunProgram 运行程序并登记运动历史
func (s *InjectorService) RunProgram() (time.Duration, error) {
	if err := s.ensureIdle(); err != nil {
		return 0, err
	}
	stepCount := len(s.driver.Snapshot().Program)
	total, err := s.driver.RequestRunProgram()
	if err != nil {
		return 0, err
	}

	s.recordMove(&models.MoveRecord{
		Kind:            models.MoveKindProgram,
		StepCount:       stepCount,
		ExpectedSeconds: total.Seconds(),
	})
	return total, nil
}

// AddStep 追加程序步骤
func (s *InjectorService) AddStep(step hardware.MotionStep) error {
	if err := s.ensureIdle(); err != nil {
		return err
	}
	return s.driver.RequestAddStep(step)
}

// DeleteStep 删除程序步骤
func (s *InjectorService) DeleteStep(index int) error {
	if err := s.ensureIdle(); err != nil {
		return err
	}
	return s.driver.RequestDeleteStep(index)
}

// ClearProgram 清空程序
func (s *InjectorService) ClearProgram() error {
	if err := s.ensureIdle(); err != nil {
		return err
	}
	return s.driver.RequestClearProgram()
}

// RefreshProgram 让固件打印程序列表校正镜像
func (s *InjectorService) RefreshProgram() error {
	return s.driver.RequestShowProgram()
}

// Abort 紧急停止，任何状态下都放行
func (s *InjectorService) Abort() error {
	return s.driver.RequestAbort()
}

// Program 程序镜像与理论总时长
func (s *InjectorService) Program() ([]hardware.MotionStep, time.Duration) {
	snap := s.driver.Snapshot()
	return snap.Program, hardware.ProgramDuration(snap.Program)
}

// QueryMoves 运动历史
func (s *InjectorService) QueryMoves(query *models.MoveRecordQuery) ([]*models.MoveRecord, int64, error) {
	return s.moves.Query(query)
}

// SerialLogs 串口日志服务（API查询用）
func (s *InjectorService) SerialLogs() *SerialLogService {
	return s.serialLogs
}

// Close 停机收尾
func (s *InjectorService) Close() {
	s.serialLogs.Close()
}

// ensureIdle 运动中的互斥检查由编排层负责，驱动只管对话状态
func (s *InjectorService) ensureIdle() error {
	if s.driver.Snapshot().Motor == hardware.MotorMoving.String() {
		return errors.New(errors.ErrMotorBusy, "电机运动中")
	}
	return nil
}

func (s *InjectorService) recordMove(record *models.MoveRecord) {
	s.mu.Lock()
	record.SessionID = s.sessionID
	s.mu.Unlock()
	record.Port = s.driver.Snapshot().Port
	record.StartedAt = time.Now()

	if err := s.moves.Create(record); err != nil {
		s.logger.Error("登记运动记录失败", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.currentMoveID = record.ID
	s.mu.Unlock()
}

func (s *InjectorService) finishCurrentMove(outcome models.MoveOutcome) {
	s.mu.Lock()
	id := s.currentMoveID
	s.currentMoveID = 0
	s.mu.Unlock()
	if id == 0 {
		return
	}
	if err := s.moves.Finish(id, outcome, time.Now()); err != nil {
		s.logger.Error("补写运动结局失败", zap.Error(err), zap.Uint("id", id))
	}
}
