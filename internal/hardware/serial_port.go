package hardware

import (
	"io"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/microinject/internal/errors"
)

// SerialPort 串口接口（便于测试替换）
type SerialPort interface {
	io.ReadWriteCloser
	Flush() error
}

// PortOpener 打开串口的工厂函数，MockMode 下替换为模拟器
type PortOpener func(name string, baud int, readTimeout time.Duration) (SerialPort, error)

// OpenTarmPort 用 tarm/serial 打开真实串口
// 打开后等待 SettleDelay 让控制器复位，再冲掉复位期间的杂音
func OpenTarmPort(settle time.Duration) PortOpener {
	return func(name string, baud int, readTimeout time.Duration) (SerialPort, error) {
		port, err := serial.OpenPort(&serial.Config{
			Name:        name,
			Baud:        baud,
			ReadTimeout: readTimeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrSerialPortOpen, "打开串口失败: "+name)
		}
		if settle > 0 {
			time.Sleep(settle)
		}
		if err := port.Flush(); err != nil {
			port.Close()
			return nil, errors.Wrap(err, errors.ErrSerialPortOpen, "清空串口缓冲失败")
		}
		return port, nil
	}
}
