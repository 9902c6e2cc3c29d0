package hardware

import "time"

// countdown 程序运行的理论剩余时间
// 只是给界面看的估算，电机真实状态以固件回报为准
type countdown struct {
	deadline time.Time
	active   bool
}

func (c *countdown) start(total time.Duration) {
	c.deadline = time.Now().Add(total)
	c.active = true
}

func (c *countdown) stop() {
	c.active = false
}

// remaining 剩余时间，未激活或已到期返回 0
func (c *countdown) remaining() time.Duration {
	if !c.active {
		return 0
	}
	left := time.Until(c.deadline)
	if left < 0 {
		return 0
	}
	return left
}
