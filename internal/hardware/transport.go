package hardware

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"github.com/wfunc/microinject/internal/errors"
	"github.com/wfunc/microinject/internal/logger"
)

// Transport 串口传输层：独占串口的读写
// 单一工作协程轮流清空发送队列、读取输入并切帧，
// 上层只通过 Send 和 Events 与它交互
type Transport struct {
	mu     sync.RWMutex
	cfg    TransportConfig
	opener PortOpener
	logger *zap.Logger

	port      SerialPort
	portName  string
	connected bool
	stopCh    chan struct{}
	writeCh   chan string
	framer    *LineFramer
	events    chan Event
	wg        sync.WaitGroup
}

// NewTransport 创建传输层，opener 决定打开真实串口还是模拟器
func NewTransport(cfg TransportConfig, opener PortOpener) *Transport {
	if cfg.WriteQueue <= 0 {
		cfg.WriteQueue = 64
	}
	return &Transport{
		cfg:    cfg,
		opener: opener,
		logger: zap.L().Named("transport"),
		framer: NewLineFramer(),
		events: make(chan Event, 256),
	}
}

// Events 事件通道，连接/断开/行/提示符都从这里出
func (t *Transport) Events() <-chan Event {
	return t.events
}

// IsConnected 当前是否已连接
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// PortName 当前端口名，未连接返回空串
func (t *Transport) PortName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected {
		return ""
	}
	return t.portName
}

// Open 打开串口并启动工作协程
// portName/baud 为空时用配置默认值
func (t *Transport) Open(portName string, baud int) error {
	t.mu.Lock()
	if t.connected {
		t.mu.Unlock()
		return errors.New(errors.ErrAlreadyExists, "串口已连接")
	}
	if portName == "" {
		portName = t.cfg.Port
	}
	if baud <= 0 {
		baud = t.cfg.BaudRate
	}

	port, err := t.opener(portName, baud, t.cfg.ReadTimeout)
	if err != nil {
		t.mu.Unlock()
		return err
	}

	t.port = port
	t.portName = portName
	t.connected = true
	t.stopCh = make(chan struct{})
	t.writeCh = make(chan string, t.cfg.WriteQueue)
	t.framer.Reset()
	t.wg.Add(1)
	stopCh, writeCh := t.stopCh, t.writeCh
	t.mu.Unlock()

	go t.run(port, stopCh, writeCh)

	t.logger.Info("串口已连接", zap.String("port", portName), zap.Int("baud", baud))
	t.publish(Event{Type: EventConnected, Text: portName})
	return nil
}

// Close 主动断开，等待工作协程退出
func (t *Transport) Close() error {
	t.teardown(nil)
	t.wg.Wait()
	return nil
}

// Send 入队一条命令（自动补换行），绝不阻塞调用方
func (t *Transport) Send(text string) error {
	t.mu.RLock()
	if !t.connected {
		t.mu.RUnlock()
		return errors.New(errors.ErrNotConnected, "串口未连接")
	}
	writeCh := t.writeCh
	t.mu.RUnlock()

	select {
	case writeCh <- text:
		return nil
	default:
		t.logger.Warn("发送队列已满，丢弃命令", zap.String("text", text))
		return errors.New(errors.ErrSerialPortWrite, "发送队列已满")
	}
}

// run 工作协程：先清空发送队列，再读一次串口并切帧
func (t *Transport) run(port SerialPort, stopCh chan struct{}, writeCh chan string) {
	defer t.wg.Done()
	buf := make([]byte, 4096)

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		// 发送队列先于读取清空，保证命令按入队顺序上线
	drain:
		for {
			select {
			case text := <-writeCh:
				if _, err := port.Write([]byte(text + "\n")); err != nil {
					t.fail(stopCh, errors.Wrap(err, errors.ErrSerialPortWrite, "串口写入失败"))
					return
				}
				logger.LogSerialLine("tx", text)
			default:
				break drain
			}
		}

		n, err := port.Read(buf)
		if err != nil {
			// tarm 串口读超时表现为 EOF，不算故障
			if err == io.EOF {
				continue
			}
			t.fail(stopCh, errors.Wrap(err, errors.ErrSerialPortRead, "串口读取失败"))
			return
		}
		if n == 0 {
			continue
		}
		for _, ev := range t.framer.Push(buf[:n]) {
			logger.LogSerialLine("rx", ev.Text)
			t.publish(ev)
		}
	}
}

// fail 读写故障时的断开，主动 Close 已触发时忽略
func (t *Transport) fail(stopCh chan struct{}, err error) {
	select {
	case <-stopCh:
		return
	default:
	}
	t.logger.Error("串口故障断开", zap.Error(err))
	t.teardown(err)
}

// teardown 统一的断开收尾，保证断开事件只发一次
func (t *Transport) teardown(err error) {
	t.mu.Lock()
	if !t.connected {
		t.mu.Unlock()
		return
	}
	t.connected = false
	close(t.stopCh)
	if t.port != nil {
		t.port.Close()
		t.port = nil
	}
	t.framer.Reset()
	t.mu.Unlock()

	t.publish(Event{Type: EventDisconnected, Err: err})
}

// publish 非阻塞投递事件，消费方滞后时丢弃并告警
func (t *Transport) publish(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("事件通道已满，丢弃事件", zap.Int("type", int(ev.Type)))
	}
}
