package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineFramerBasicLines(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("hello\r\nworld\n"))
	assert.Len(t, events, 2)
	assert.Equal(t, EventLine, events[0].Type)
	assert.Equal(t, "hello", events[0].Text)
	assert.Equal(t, "world", events[1].Text)
	assert.Empty(t, f.Pending())
}

func TestLineFramerPromptWithoutNewline(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("Enter Direction>"))
	assert.Len(t, events, 1)
	assert.Equal(t, EventPrompt, events[0].Type)
	assert.Equal(t, "Enter Direction>", events[0].Text)
	assert.Empty(t, f.Pending(), "提示符冲刷后缓冲必须清空")
}

func TestLineFramerPromptWithTrailingSpace(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("Enter Distance> "))
	assert.Len(t, events, 1)
	assert.Equal(t, EventPrompt, events[0].Type)
	assert.Equal(t, "Enter Distance>", events[0].Text)
}

func TestLineFramerMixedLineThenPrompt(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("Manual Move\r\nEnter Direction>"))
	assert.Len(t, events, 2)
	assert.Equal(t, EventLine, events[0].Type)
	assert.Equal(t, "Manual Move", events[0].Text)
	assert.Equal(t, EventPrompt, events[1].Type)
	assert.Equal(t, "Enter Direction>", events[1].Text)
}

func TestLineFramerPartialLineHeld(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("half a li"))
	assert.Empty(t, events)
	assert.Equal(t, "half a li", f.Pending())

	events = f.Push([]byte("ne\n"))
	assert.Len(t, events, 1)
	assert.Equal(t, "half a line", events[0].Text)
}

func TestLineFramerBareSentinelPrompt(t *testing.T) {
	f := NewLineFramer()
	events := f.Push([]byte("> "))
	assert.Len(t, events, 1)
	assert.Equal(t, EventPrompt, events[0].Type)
	assert.Equal(t, ">", events[0].Text)
}

// 同一字节流不论从哪里切分，事件序列必须一致
func TestLineFramerSplitBoundaryIdempotence(t *testing.T) {
	stream := []byte("Manual Move\r\nEnter Direction>")
	whole := NewLineFramer().Push(stream)

	for cut := 1; cut < len(stream); cut++ {
		f := NewLineFramer()
		var events []Event
		events = append(events, f.Push(stream[:cut])...)
		events = append(events, f.Push(stream[cut:])...)
		assert.Equal(t, whole, events, "切分点 %d 产生了不同事件", cut)
	}
}

func TestLineFramerReset(t *testing.T) {
	f := NewLineFramer()
	f.Push([]byte("dangling"))
	f.Reset()
	assert.Empty(t, f.Pending())
	events := f.Push([]byte("fresh\n"))
	assert.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Text)
}
