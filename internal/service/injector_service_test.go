package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/hardware"
	"github.com/wfunc/microinject/internal/models"
	"github.com/wfunc/microinject/internal/repository"
	"go.uber.org/zap"
)

// captureBroadcaster 收集广播的测试替身
type captureBroadcaster struct {
	mu     sync.Mutex
	events []hardware.DriverEvent
}

func (b *captureBroadcaster) BroadcastJSON(v interface{}) {
	ev, ok := v.(hardware.DriverEvent)
	if !ok {
		return
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

func (b *captureBroadcaster) count(t hardware.DriverEventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, ev := range b.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func setupInjectorService(t *testing.T) (*InjectorService, *captureBroadcaster) {
	t.Helper()
	tr := hardware.NewTransport(hardware.TransportConfig{
		Port:        "mock",
		BaudRate:    9600,
		ReadTimeout: 10 * time.Millisecond,
	}, hardware.MockOpener(300*time.Millisecond))
	driver := hardware.NewDriver(tr, hardware.DriverConfig{
		MaxProgramSteps: 5,
		MaxSpeed:        1000,
		MaxAccel:        1000,
	})
	t.Cleanup(driver.Stop)

	db := repository.SetupTestDB()
	t.Cleanup(func() { repository.CleanupTestDB(db) })

	broadcaster := &captureBroadcaster{}
	svc := NewInjectorService(driver, db, broadcaster, zap.NewNop())
	t.Cleanup(func() { _ = svc.Disconnect() })

	require.NoError(t, svc.Connect("", 0))
	require.Eventually(t, func() bool {
		return svc.Status().Connected
	}, time.Second, 5*time.Millisecond)

	return svc, broadcaster
}

func waitMotor(t *testing.T, svc *InjectorService, state string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return svc.Status().Motor == state
	}, 2*time.Second, 5*time.Millisecond)
}

func TestInjectorServiceManualMoveRecordsHistory(t *testing.T) {
	svc, _ := setupInjectorService(t)

	expected, err := svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 100, Speed: 50, Accel: 0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, expected.Seconds(), 1e-6)

	waitMotor(t, svc, "moving")
	waitMotor(t, svc, "idle")

	require.Eventually(t, func() bool {
		records, _, err := svc.QueryMoves(&models.MoveRecordQuery{Kind: models.MoveKindManual})
		return err == nil && len(records) == 1 && records[0].Outcome == models.MoveOutcomeDone
	}, 2*time.Second, 10*time.Millisecond)

	records, total, err := svc.QueryMoves(&models.MoveRecordQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, 100, records[0].Distance)
	assert.InDelta(t, 2.0, records[0].ExpectedSeconds, 1e-6)
	assert.NotNil(t, records[0].FinishedAt)
}

func TestInjectorServiceRunProgramFlow(t *testing.T) {
	svc, _ := setupInjectorService(t)

	require.NoError(t, svc.AddStep(hardware.MotionStep{Forward: true, Distance: 100, Speed: 50, Accel: 0}))
	require.Eventually(t, func() bool {
		return !svc.Status().DialogBusy
	}, 2*time.Second, 5*time.Millisecond)

	program, totalDur := svc.Program()
	assert.Len(t, program, 1)
	assert.InDelta(t, 2.0, totalDur.Seconds(), 1e-6)

	total, err := svc.RunProgram()
	require.NoError(t, err)
	assert.InDelta(t, 2.0, total.Seconds(), 1e-6)

	waitMotor(t, svc, "moving")
	waitMotor(t, svc, "idle")

	require.Eventually(t, func() bool {
		records, _, err := svc.QueryMoves(&models.MoveRecordQuery{Kind: models.MoveKindProgram})
		return err == nil && len(records) == 1 &&
			records[0].Outcome == models.MoveOutcomeDone && records[0].StepCount == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInjectorServiceRejectsWhileMoving(t *testing.T) {
	svc, _ := setupInjectorService(t)

	_, err := svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 100, Speed: 50, Accel: 0})
	require.NoError(t, err)
	waitMotor(t, svc, "moving")

	_, err = svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 1, Speed: 1, Accel: 0})
	assert.True(t, errors.Is(err, errors.ErrMotorBusy))

	err = svc.AddStep(hardware.MotionStep{Forward: true, Distance: 1, Speed: 1, Accel: 0})
	assert.True(t, errors.Is(err, errors.ErrMotorBusy))

	// 急停不受互斥限制
	require.NoError(t, svc.Abort())
	waitMotor(t, svc, "idle")
}

func TestInjectorServiceAbortRecordsAbortedOutcome(t *testing.T) {
	svc, _ := setupInjectorService(t)

	_, err := svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 2048, Speed: 300, Accel: 100})
	require.NoError(t, err)
	waitMotor(t, svc, "moving")

	require.NoError(t, svc.Abort())
	waitMotor(t, svc, "idle")

	require.Eventually(t, func() bool {
		records, _, err := svc.QueryMoves(&models.MoveRecordQuery{})
		return err == nil && len(records) == 1 && records[0].Outcome == models.MoveOutcomeAborted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInjectorServicePersistsSerialTraffic(t *testing.T) {
	svc, _ := setupInjectorService(t)

	_, err := svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 100, Speed: 50, Accel: 0})
	require.NoError(t, err)

	// 先等运动真正开始，再等结束，确保整个对话收发都已发生
	waitMotor(t, svc, "moving")
	waitMotor(t, svc, "idle")

	// 关闭把缓冲刷进数据库
	svc.Close()

	logs, total, err := svc.SerialLogs().Query(&models.SerialLogQuery{Direction: models.SerialDirectionTx})
	require.NoError(t, err)
	assert.Positive(t, total)

	var texts []string
	for _, l := range logs {
		texts = append(texts, l.Text)
	}
	assert.Contains(t, texts, "M")
	assert.Contains(t, texts, "F")

	// 固件提示符按提示行落库，方便回放时区分问答
	rxLogs, _, err := svc.SerialLogs().Query(&models.SerialLogQuery{Direction: models.SerialDirectionRx})
	require.NoError(t, err)
	var prompts int
	for _, l := range rxLogs {
		if l.IsPrompt {
			prompts++
		}
	}
	assert.Positive(t, prompts)
}

func TestInjectorServiceBroadcasts(t *testing.T) {
	svc, broadcaster := setupInjectorService(t)

	_, err := svc.ManualMove(hardware.MotionStep{Forward: true, Distance: 100, Speed: 50, Accel: 0})
	require.NoError(t, err)
	waitMotor(t, svc, "moving")
	waitMotor(t, svc, "idle")

	assert.Eventually(t, func() bool {
		return broadcaster.count(hardware.DriverEventTxLine) > 0 &&
			broadcaster.count(hardware.DriverEventRxLine) > 0 &&
			broadcaster.count(hardware.DriverEventState) >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
