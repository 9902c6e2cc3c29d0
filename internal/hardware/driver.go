package hardware

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/logger"
)

// Listener 驱动事件回调（WebSocket 广播、持久化等）
type Listener func(DriverEvent)

// Driver 注射泵协议驱动
// 消化传输层的行/提示符事件驱动固件菜单对话，
// 所有状态（电机、意向、编辑器、程序镜像）只在一把锁内变化
type Driver struct {
	mu     sync.Mutex
	cfg    DriverConfig
	tr     *Transport
	logger *zap.Logger

	motor    MotorState
	inEditor bool
	manual   *MotionStep // 手动移动意向，与 progAdd 互斥
	progAdd  *MotionStep // 追加步骤意向
	queue    commandQueue
	program  []MotionStep
	cd       countdown

	listenerMu sync.RWMutex
	listener   Listener
	notifyCh   chan DriverEvent
	quit       chan struct{}
}

// NewDriver 创建驱动并启动事件泵
func NewDriver(tr *Transport, cfg DriverConfig) *Driver {
	if cfg.MaxProgramSteps <= 0 {
		cfg.MaxProgramSteps = 5
	}
	d := &Driver{
		cfg:      cfg,
		tr:       tr,
		logger:   zap.L().Named("driver"),
		notifyCh: make(chan DriverEvent, 256),
		quit:     make(chan struct{}),
	}
	go d.pumpEvents()
	go d.dispatch()
	return d
}

// SetListener 注册事件回调，回调在独立协程执行，可安全回调驱动方法
func (d *Driver) SetListener(fn Listener) {
	d.listenerMu.Lock()
	d.listener = fn
	d.listenerMu.Unlock()
}

// Stop 停止事件泵（进程退出时）
func (d *Driver) Stop() {
	close(d.quit)
}

// Connect 打开串口
func (d *Driver) Connect(portName string, baud int) error {
	return d.tr.Open(portName, baud)
}

// Disconnect 主动断开串口
func (d *Driver) Disconnect() error {
	return d.tr.Close()
}

// IsConnected 串口是否连接
func (d *Driver) IsConnected() bool {
	return d.tr.IsConnected()
}

// Snapshot 当前状态快照
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Driver) snapshotLocked() Snapshot {
	program := make([]MotionStep, len(d.program))
	copy(program, d.program)
	return Snapshot{
		Connected:  d.tr.IsConnected(),
		Port:       d.tr.PortName(),
		Motor:      d.motor.String(),
		InEditor:   d.inEditor,
		DialogBusy: d.dialogBusyLocked(),
		Program:    program,
		Countdown:  d.cd.remaining().Seconds(),
	}
}

// RequestManualMove 发起一次手动移动
// 武装意向、启动倒计时并发送 M，后续由固件提示符逐项应答
func (d *Driver) RequestManualMove(step MotionStep) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return err
	}
	if err := d.validateStep(step); err != nil {
		return err
	}
	s := step
	d.manual = &s
	d.cd.start(StepDuration(step))
	if err := d.sendLocked(TokenManualMove); err != nil {
		d.manual = nil
		d.cd.stop()
		return err
	}
	return nil
}

// RequestAddStep 向程序追加一条步骤
// 镜像先行更新，真实结果以固件回报为准
func (d *Driver) RequestAddStep(step MotionStep) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return err
	}
	if err := d.validateStep(step); err != nil {
		return err
	}
	if len(d.program) >= d.cfg.MaxProgramSteps {
		return errors.Newf(errors.ErrProgramFull, "程序已满（最多 %d 步）", d.cfg.MaxProgramSteps)
	}
	s := step
	d.progAdd = &s
	d.program = append(d.program, s)
	d.inEditor = true
	d.queue.clear()
	d.queue.push(TokenAppendStep)
	if err := d.sendLocked(TokenProgramEditor); err != nil {
		return err
	}
	d.emitProgramLocked()
	return nil
}

// RequestDeleteStep 删除程序第 index 步（1 起）
func (d *Driver) RequestDeleteStep(index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return err
	}
	if index < 1 || index > len(d.program) {
		return errors.Newf(errors.ErrInvalidIndex, "步骤序号越界: %d", index)
	}
	d.program = append(d.program[:index-1], d.program[index:]...)
	d.inEditor = true
	d.queue.clear()
	d.queue.push(fmt.Sprintf("%s %d", TokenDeleteStep, index))
	if err := d.sendLocked(TokenProgramEditor); err != nil {
		return err
	}
	d.emitProgramLocked()
	return nil
}

// RequestClearProgram 清空程序
func (d *Driver) RequestClearProgram() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return err
	}
	d.program = nil
	if err := d.sendLocked(TokenClearProgram); err != nil {
		return err
	}
	d.emitProgramLocked()
	return nil
}

// RequestRunProgram 运行已存程序，返回理论总时长
func (d *Driver) RequestRunProgram() (time.Duration, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return 0, err
	}
	if len(d.program) == 0 {
		return 0, errors.New(errors.ErrProgramEmpty, "程序为空")
	}
	total := ProgramDuration(d.program)
	d.cd.start(total)
	if err := d.sendLocked(TokenRunProgram); err != nil {
		d.cd.stop()
		return 0, err
	}
	return total, nil
}

// RequestShowProgram 请求固件打印程序列表（镜像据此校正）
func (d *Driver) RequestShowProgram() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.readyLocked(); err != nil {
		return err
	}
	return d.sendLocked(TokenShowProgram)
}

// RequestAbort 紧急停止，对话进行中也必须可达
func (d *Driver) RequestAbort() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.tr.IsConnected() {
		return errors.New(errors.ErrNotConnected, "串口未连接")
	}
	d.cd.stop()
	return d.sendLocked(TokenAbort)
}

// readyLocked 发起新对话的公共前置：已连接且无对话在途
func (d *Driver) readyLocked() error {
	if !d.tr.IsConnected() {
		return errors.New(errors.ErrNotConnected, "串口未连接")
	}
	if d.dialogBusyLocked() {
		return errors.New(errors.ErrDialogBusy, "上一个对话尚未完成")
	}
	return nil
}

func (d *Driver) dialogBusyLocked() bool {
	return d.manual != nil || d.progAdd != nil || d.inEditor || d.queue.len() > 0
}

// validateStep 参数范围检查，accel 为 0 表示恒速
func (d *Driver) validateStep(step MotionStep) error {
	if step.Distance <= 0 {
		return errors.Newf(errors.ErrInvalidStep, "距离必须为正: %d", step.Distance)
	}
	if step.Speed <= 0 {
		return errors.Newf(errors.ErrInvalidStep, "速度必须为正: %d", step.Speed)
	}
	if step.Accel < 0 {
		return errors.Newf(errors.ErrInvalidStep, "加速度不能为负: %d", step.Accel)
	}
	if d.cfg.MaxSpeed > 0 && step.Speed > d.cfg.MaxSpeed {
		return errors.Newf(errors.ErrInvalidStep, "速度超限: %d > %d", step.Speed, d.cfg.MaxSpeed)
	}
	if d.cfg.MaxAccel > 0 && step.Accel > d.cfg.MaxAccel {
		return errors.Newf(errors.ErrInvalidStep, "加速度超限: %d > %d", step.Accel, d.cfg.MaxAccel)
	}
	return nil
}

// sendLocked 经传输层发送并广播 tx 事件
func (d *Driver) sendLocked(text string) error {
	if err := d.tr.Send(text); err != nil {
		return err
	}
	d.emit(DriverEvent{Type: DriverEventTxLine, Text: text})
	return nil
}

// pumpEvents 传输层事件泵，驱动全部状态迁移
func (d *Driver) pumpEvents() {
	for {
		select {
		case <-d.quit:
			return
		case ev := <-d.tr.Events():
			d.handleEvent(ev)
		}
	}
}

func (d *Driver) handleEvent(ev Event) {
	switch ev.Type {
	case EventConnected:
		d.mu.Lock()
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.emit(DriverEvent{Type: DriverEventConnected, Text: ev.Text, Snapshot: &snap})
	case EventDisconnected:
		d.mu.Lock()
		d.resetLocked()
		snap := d.snapshotLocked()
		d.mu.Unlock()
		if ev.Err != nil {
			logger.LogError(ev.Err, "串口异常断开")
		}
		d.emit(DriverEvent{Type: DriverEventDisconnected, Snapshot: &snap})
	case EventLine, EventPrompt:
		d.emit(DriverEvent{Type: DriverEventRxLine, Text: ev.Text, IsPrompt: ev.Type == EventPrompt})
		d.mu.Lock()
		d.handleLineLocked(ev.Text, ev.Type == EventPrompt)
		d.mu.Unlock()
	}
}

// resetLocked 断开连接后的状态归零
func (d *Driver) resetLocked() {
	d.motor = MotorIdle
	d.manual = nil
	d.progAdd = nil
	d.inEditor = false
	d.queue.clear()
	d.cd.stop()
}

// handleLineLocked 固件输出的规则匹配，自上而下第一条命中即返回
func (d *Driver) handleLineLocked(text string, isPrompt bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	upper := strings.ToUpper(trimmed)
	promptLike := isPrompt || strings.HasSuffix(trimmed, promptSentinel)
	dialog := d.dialogStepLocked()

	switch {
	// 运动开始
	case strings.Contains(upper, "STARTING MOVE") || strings.Contains(upper, "STARTING..."):
		d.setMotorLocked(MotorMoving)

	// 运动结束/中止：对话状态全部清场
	case strings.Contains(upper, "[DONE]") || strings.Contains(upper, "[ABORTED]"):
		d.setMotorLocked(MotorIdle)
		d.manual = nil
		d.progAdd = nil
		d.inEditor = false
		d.queue.clear()
		d.cd.stop()

	// 对话四连问，按武装的意向逐项应答
	case promptLike && dialog != nil && strings.Contains(upper, "DIRECTION"):
		d.replyLocked(dialog.Direction())
	case promptLike && dialog != nil && strings.Contains(upper, "DISTANCE"):
		d.replyLocked(strconv.Itoa(dialog.Distance))
	case promptLike && dialog != nil && strings.Contains(upper, "SPEED"):
		d.replyLocked(strconv.Itoa(dialog.Speed))
	case promptLike && dialog != nil && strings.Contains(upper, "ACCEL"):
		// 最后一项，对话到此完成，意向随之解除
		d.replyLocked(strconv.Itoa(dialog.Accel))
		d.manual = nil
		d.progAdd = nil

	// 编辑器确认回报：排队退出命令
	case strings.Contains(upper, "STEP ADDED") || strings.Contains(upper, "STEP DELETED"):
		d.queue.push(TokenExitEditor)
		d.emitProgramLocked()

	// 编辑器裸提示符：每个提示符消费一条排队命令
	case trimmed == promptSentinel && d.inEditor:
		cmd, ok := d.queue.pop()
		if !ok {
			return
		}
		if cmd == TokenExitEditor {
			d.inEditor = false
		}
		d.replyLocked(cmd)

	// 列表表头等注释行
	case strings.HasPrefix(trimmed, "#"):
		return

	// 程序列表行，尽力校正镜像
	default:
		d.tryParseProgramRowLocked(trimmed)
	}
}

// dialogStepLocked 当前武装的意向（两槽互斥，最多一个非空）
func (d *Driver) dialogStepLocked() *MotionStep {
	if d.manual != nil {
		return d.manual
	}
	return d.progAdd
}

// tryParseProgramRowLocked 解析 "idx DIR dist speed accel" 形式的列表行
// 解析失败静默忽略，缺位用默认步骤补齐
func (d *Driver) tryParseProgramRowLocked(line string) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return
	}
	idx, err := strconv.Atoi(fields[0])
	if err != nil || idx < 1 || idx > d.cfg.MaxProgramSteps {
		return
	}
	dir := strings.ToUpper(fields[1])
	if dir != TokenForward && dir != TokenBackward {
		return
	}
	dist, err := strconv.Atoi(fields[2])
	if err != nil {
		return
	}
	speed, err := strconv.Atoi(fields[3])
	if err != nil {
		return
	}
	accel, err := strconv.Atoi(fields[4])
	if err != nil {
		return
	}

	for len(d.program) < idx {
		d.program = append(d.program, DefaultStep())
	}
	d.program[idx-1] = MotionStep{
		Forward:  dir == TokenForward,
		Distance: dist,
		Speed:    speed,
		Accel:    accel,
	}
	d.emitProgramLocked()
}

func (d *Driver) setMotorLocked(state MotorState) {
	if d.motor == state {
		return
	}
	d.motor = state
	logger.LogMotionEvent("motor_state", zap.String("state", state.String()))
	snap := d.snapshotLocked()
	d.emit(DriverEvent{Type: DriverEventState, Snapshot: &snap})
}

func (d *Driver) replyLocked(text string) {
	if err := d.tr.Send(text); err != nil {
		logger.LogError(err, "应答固件提示符失败", zap.String("text", text))
		return
	}
	d.emit(DriverEvent{Type: DriverEventTxLine, Text: text})
}

func (d *Driver) emitProgramLocked() {
	snap := d.snapshotLocked()
	d.emit(DriverEvent{Type: DriverEventProgram, Snapshot: &snap})
}

// emit 非阻塞投递通知，由 dispatch 协程转交回调
func (d *Driver) emit(ev DriverEvent) {
	select {
	case d.notifyCh <- ev:
	default:
		d.logger.Warn("通知队列已满，丢弃事件", zap.String("type", string(ev.Type)))
	}
}

func (d *Driver) dispatch() {
	for {
		select {
		case <-d.quit:
			return
		case ev := <-d.notifyCh:
			d.listenerMu.RLock()
			fn := d.listener
			d.listenerMu.RUnlock()
			if fn != nil {
				fn(ev)
			}
		}
	}
}
