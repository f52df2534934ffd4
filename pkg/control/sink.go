package control

import (
	"fmt"
	"time"
)

// Sink receives operator log lines. Log must not block.
type Sink interface {
	Log(msg string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(msg string)

func (f SinkFunc) Log(msg string) { f(msg) }

// ChannelSink buffers timestamped log lines for a dashboard.
type ChannelSink struct {
	ch chan string
}

// NewChannelSink creates a sink holding up to size unread lines.
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan string, size)}
}

func (s *ChannelSink) Log(msg string) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
	select {
	case s.ch <- line:
	default:
		// Drop if channel full
	}
}

// Messages returns the channel of log lines.
func (s *ChannelSink) Messages() <-chan string {
	return s.ch
}
