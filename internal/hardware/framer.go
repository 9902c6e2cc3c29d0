package hardware

import "strings"

// promptSentinel 固件对话提示符的结尾字符
const promptSentinel = ">"

// LineFramer 把串口字节流切成行事件和提示符事件
// 固件的提示符（如 "Enter Direction>"）不带换行，
// 必须在缓冲去掉空白后以 > 结尾时立即冲刷，否则对话会卡死等待
type LineFramer struct {
	buf strings.Builder
}

// NewLineFramer 创建帧分割器
func NewLineFramer() *LineFramer {
	return &LineFramer{}
}

// Push 追加一段字节并返回产生的事件
// 先按 \n 切出完整行（去掉尾部 \r），再检查剩余缓冲是否为提示符片段
// 任意位置切分同一字节流，产生的事件序列不变
func (f *LineFramer) Push(data []byte) []Event {
	if len(data) == 0 {
		return nil
	}
	f.buf.Write(data)

	var events []Event
	work := f.buf.String()
	for {
		idx := strings.IndexByte(work, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimSuffix(work[:idx], "\r")
		work = work[idx+1:]
		events = append(events, Event{Type: EventLine, Text: line})
	}

	// 提示符片段：去空白后以 > 结尾则立即冲刷
	trimmed := strings.TrimSpace(work)
	if trimmed != "" && strings.HasSuffix(trimmed, promptSentinel) {
		events = append(events, Event{Type: EventPrompt, Text: trimmed})
		work = ""
	}

	f.buf.Reset()
	f.buf.WriteString(work)
	return events
}

// Pending 返回当前未成帧的缓冲内容（诊断用）
func (f *LineFramer) Pending() string {
	return f.buf.String()
}

// Reset 丢弃缓冲（断开连接时调用）
func (f *LineFramer) Reset() {
	f.buf.Reset()
}
