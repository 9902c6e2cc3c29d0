package hardware

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MockFirmware 模拟注射泵固件的串口对话（开发与测试用）
// 实现 SerialPort，行为对齐真实固件菜单：
// 手动移动对话、程序编辑器、运行/中止、程序列表
type MockFirmware struct {
	mu          sync.Mutex
	logger      *zap.Logger
	readTimeout time.Duration
	moveDelay   time.Duration // 模拟一次运动的耗时

	rx       chan []byte // 固件输出，等待上层读取
	leftover []byte
	closed   bool

	lineBuf strings.Builder

	// 对话状态机
	mode        mockMode
	dialogField int
	pending     MotionStep
	appending   bool

	program   []MotionStep
	moveTimer *time.Timer
}

type mockMode int

const (
	mockTop    mockMode = iota // 主菜单
	mockDialog                 // 逐项输入方向/距离/速度/加速度
	mockEditor                 // 程序编辑器
)

// NewMockFirmware 创建固件模拟器
func NewMockFirmware(readTimeout, moveDelay time.Duration) *MockFirmware {
	if readTimeout <= 0 {
		readTimeout = 50 * time.Millisecond
	}
	if moveDelay <= 0 {
		moveDelay = 200 * time.Millisecond
	}
	return &MockFirmware{
		logger:      zap.L().Named("mock-firmware"),
		readTimeout: readTimeout,
		moveDelay:   moveDelay,
		rx:          make(chan []byte, 64),
	}
}

// MockOpener 返回忽略端口名的 PortOpener（MockMode 配置用）
func MockOpener(moveDelay time.Duration) PortOpener {
	return func(_ string, _ int, readTimeout time.Duration) (SerialPort, error) {
		return NewMockFirmware(readTimeout, moveDelay), nil
	}
}

// Read 阻塞至有输出或读超时，超时返回 (0, nil) 与真实串口一致
func (m *MockFirmware) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, io.EOF
	}
	if len(m.leftover) > 0 {
		n := copy(p, m.leftover)
		m.leftover = m.leftover[n:]
		m.mu.Unlock()
		return n, nil
	}
	m.mu.Unlock()

	select {
	case chunk, ok := <-m.rx:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			m.mu.Lock()
			m.leftover = chunk[n:]
			m.mu.Unlock()
		}
		return n, nil
	case <-time.After(m.readTimeout):
		return 0, nil
	}
}

// Write 按行累积输入，每到一个换行处理一条命令
func (m *MockFirmware) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, io.EOF
	}
	for _, b := range p {
		if b == '\n' {
			line := strings.TrimSpace(m.lineBuf.String())
			m.lineBuf.Reset()
			m.handleLine(line)
		} else {
			m.lineBuf.WriteByte(b)
		}
	}
	return len(p), nil
}

// Flush 丢弃未读输出
func (m *MockFirmware) Flush() error {
	for {
		select {
		case <-m.rx:
		default:
			m.mu.Lock()
			m.leftover = nil
			m.mu.Unlock()
			return nil
		}
	}
}

// Close 关闭模拟器，之后读写返回 EOF
func (m *MockFirmware) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.moveTimer != nil {
		m.moveTimer.Stop()
		m.moveTimer = nil
	}
	close(m.rx)
	return nil
}

// emit 向输出队列追加文本（持锁调用）
func (m *MockFirmware) emit(text string) {
	if m.closed {
		return
	}
	select {
	case m.rx <- []byte(text):
	default:
		m.logger.Warn("模拟器输出队列已满，丢弃", zap.String("text", text))
	}
}

var dialogPrompts = []string{"Enter Direction>", "Enter Distance>", "Enter Speed>", "Enter Accel>"}

// handleLine 固件菜单状态机（持锁调用）
func (m *MockFirmware) handleLine(line string) {
	if line == "" {
		return
	}
	upper := strings.ToUpper(line)

	switch m.mode {
	case mockDialog:
		m.handleDialogAnswer(upper)
		return
	case mockEditor:
		m.handleEditorCommand(upper)
		return
	}

	switch {
	case upper == TokenManualMove:
		m.emit("Manual Move\r\n")
		m.enterDialog(false)
	case upper == TokenProgramEditor:
		m.emit("Program Editor\r\n")
		m.mode = mockEditor
		m.emit("> ")
	case upper == TokenRunProgram:
		if len(m.program) == 0 {
			m.emit("No program stored\r\n")
			return
		}
		m.startMove(ProgramDuration(m.program))
	case upper == TokenShowProgram:
		m.emitProgram()
	case upper == TokenClearProgram:
		m.program = nil
		m.emit("Program cleared\r\n")
	case upper == TokenAbort:
		m.abortMove()
	default:
		m.emit("Unknown command\r\n")
	}
}

// enterDialog 进入四项输入对话
func (m *MockFirmware) enterDialog(appending bool) {
	m.mode = mockDialog
	m.dialogField = 0
	m.pending = MotionStep{}
	m.appending = appending
	m.emit(dialogPrompts[0])
}

func (m *MockFirmware) handleDialogAnswer(answer string) {
	switch m.dialogField {
	case 0:
		m.pending.Forward = answer != TokenBackward
	case 1:
		m.pending.Distance, _ = strconv.Atoi(answer)
	case 2:
		m.pending.Speed, _ = strconv.Atoi(answer)
	case 3:
		m.pending.Accel, _ = strconv.Atoi(answer)
	}
	m.dialogField++
	if m.dialogField < len(dialogPrompts) {
		m.emit(dialogPrompts[m.dialogField])
		return
	}

	if m.appending {
		m.program = append(m.program, m.pending)
		m.mode = mockEditor
		m.emit("Step Added\r\n")
		m.emit("> ")
		return
	}
	m.mode = mockTop
	m.startMove(StepDuration(m.pending))
}

func (m *MockFirmware) handleEditorCommand(cmd string) {
	switch {
	case cmd == TokenAppendStep:
		m.enterDialog(true)
	case strings.HasPrefix(cmd, TokenDeleteStep+" "):
		idx, err := strconv.Atoi(strings.TrimSpace(cmd[2:]))
		if err == nil && idx >= 1 && idx <= len(m.program) {
			m.program = append(m.program[:idx-1], m.program[idx:]...)
			m.emit("Step Deleted\r\n")
		} else {
			m.emit("Bad index\r\n")
		}
		m.emit("> ")
	case cmd == TokenExitEditor:
		m.mode = mockTop
	default:
		m.emit("Unknown editor command\r\n")
		m.emit("> ")
	}
}

func (m *MockFirmware) emitProgram() {
	m.emit("# IDX DIR DIST SPEED ACCEL\r\n")
	for i, s := range m.program {
		m.emit(fmt.Sprintf("%d %s %d %d %d\r\n", i+1, s.Direction(), s.Distance, s.Speed, s.Accel))
	}
}

// startMove 发出开始标记，moveDelay 后发出完成标记
func (m *MockFirmware) startMove(d time.Duration) {
	m.emit("STARTING MOVE\r\n")
	delay := m.moveDelay
	if d > 0 && d < delay {
		delay = d
	}
	m.moveTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.moveTimer = nil
		m.emit("[DONE]\r\n")
	})
}

func (m *MockFirmware) abortMove() {
	if m.moveTimer != nil {
		m.moveTimer.Stop()
		m.moveTimer = nil
	}
	m.emit("[ABORTED]\r\n")
}
