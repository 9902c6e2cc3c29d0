package hardware

import "time"

// 固件菜单命令令牌
const (
	TokenManualMove    = "M" // 进入手动移动对话
	TokenProgramEditor = "P" // 进入程序编辑器
	TokenAppendStep    = "A" // 编辑器内追加步骤
	TokenDeleteStep    = "D" // 编辑器内删除步骤（"D n"）
	TokenExitEditor    = "Q" // 退出编辑器
	TokenRunProgram    = "R" // 运行已存程序
	TokenShowProgram   = "S" // 打印程序列表
	TokenClearProgram  = "C" // 清空程序
	TokenAbort         = "X" // 紧急停止
	TokenForward       = "F" // 正向（推注）
	TokenBackward      = "B" // 反向（回吸）
)

// MotorState 电机运行状态（只由固件回报推导，不做本地猜测）
type MotorState int

const (
	MotorIdle   MotorState = iota // 空闲
	MotorMoving                   // 运动中
)

func (s MotorState) String() string {
	if s == MotorMoving {
		return "moving"
	}
	return "idle"
}

// MotionStep 一条运动步骤（手动移动和程序步骤共用）
type MotionStep struct {
	Forward  bool `json:"forward"`  // 方向：true=正向
	Distance int  `json:"distance"` // 距离（步数）
	Speed    int  `json:"speed"`    // 速度（步/秒）
	Accel    int  `json:"accel"`    // 加速度（步/秒²，0=恒速）
}

// Direction 返回方向令牌
func (s MotionStep) Direction() string {
	if s.Forward {
		return TokenForward
	}
	return TokenBackward
}

// DefaultStep 程序镜像补位用的默认步骤
func DefaultStep() MotionStep {
	return MotionStep{Forward: true, Distance: 2048, Speed: 300, Accel: 100}
}

// EventType 传输层事件类型
type EventType int

const (
	EventLine         EventType = iota // 完整一行（已去 \r\n）
	EventPrompt                        // 提示符片段（以 > 结尾、无换行）
	EventConnected                     // 串口已连接
	EventDisconnected                  // 串口断开（主动或故障）
)

// Event 传输层向上层投递的事件
type Event struct {
	Type EventType
	Text string // Line/Prompt 的文本内容
	Err  error  // Disconnected 时的故障原因（主动断开为 nil）
}

// DriverEventType 驱动层对外通知类型
type DriverEventType string

const (
	DriverEventConnected    DriverEventType = "connected"
	DriverEventDisconnected DriverEventType = "disconnected"
	DriverEventRxLine       DriverEventType = "rx"      // 收到固件输出
	DriverEventTxLine       DriverEventType = "tx"      // 已发送命令
	DriverEventState        DriverEventType = "state"   // 电机状态变化
	DriverEventProgram      DriverEventType = "program" // 程序镜像变化
)

// DriverEvent 驱动层通知（WebSocket 广播与持久化共用）
type DriverEvent struct {
	Type     DriverEventType `json:"type"`
	Text     string          `json:"text,omitempty"`
	IsPrompt bool            `json:"is_prompt,omitempty"` // rx行是否为固件提示符
	Snapshot *Snapshot       `json:"snapshot,omitempty"`
}

// Snapshot 驱动状态快照（供 API 查询与广播）
type Snapshot struct {
	Connected  bool         `json:"connected"`
	Port       string       `json:"port"`
	Motor      string       `json:"motor"`
	InEditor   bool         `json:"in_editor"`
	DialogBusy bool         `json:"dialog_busy"`
	Program    []MotionStep `json:"program"`
	Countdown  float64      `json:"countdown"` // 剩余秒数，0 表示无倒计时
}

// TransportConfig 传输层配置
type TransportConfig struct {
	Port        string        // 串口端口，如 /dev/ttyUSB0
	BaudRate    int           // 波特率，默认 9600
	ReadTimeout time.Duration // 单次读超时
	SettleDelay time.Duration // 打开后等待控制器复位的时间
	WriteQueue  int           // 发送队列容量
}

// DriverConfig 驱动层配置
type DriverConfig struct {
	MaxProgramSteps int // 固件程序容量（5）
	MaxSpeed        int // 速度上限（步/秒）
	MaxAccel        int // 加速度上限（步/秒²）
}
