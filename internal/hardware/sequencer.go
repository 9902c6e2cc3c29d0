package hardware

// commandQueue 编辑器命令排队：每个裸提示符消费一个命令
// 严格 FIFO，不会合并也不会跳过
// 持有者（Driver）负责加锁，这里不做并发保护
type commandQueue struct {
	pending []string
}

// push 追加一个待发命令
func (q *commandQueue) push(cmd string) {
	q.pending = append(q.pending, cmd)
}

// pop 取出队首命令，空队列返回 false
func (q *commandQueue) pop() (string, bool) {
	if len(q.pending) == 0 {
		return "", false
	}
	cmd := q.pending[0]
	q.pending = q.pending[1:]
	return cmd, true
}

// clear 丢弃全部待发命令（断开连接或终止回报时）
func (q *commandQueue) clear() {
	q.pending = nil
}

func (q *commandQueue) len() int {
	return len(q.pending)
}
