package market

import (
	"sync"
	"time"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Status 引擎对外的状态事件（限流、合成兜底、降级粒度等）。
// 展示与关闭策略由消费方决定。
type Status struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Time     int64    `json:"time"`
}

// StatusBus 广播状态事件。发布永不阻塞：订阅通道满时丢弃，
// 同时保留最近 N 条供 HTTP 查询。
type StatusBus struct {
	mu     sync.Mutex
	subs   []chan Status
	recent []Status
	keep   int
}

func NewStatusBus(keep int) *StatusBus {
	if keep <= 0 {
		keep = 20
	}
	return &StatusBus{keep: keep}
}

func (b *StatusBus) Publish(sev Severity, message string) {
	evt := Status{Severity: sev, Message: message, Time: time.Now().UnixMilli()}
	b.mu.Lock()
	b.recent = append(b.recent, evt)
	if len(b.recent) > b.keep {
		b.recent = b.recent[len(b.recent)-b.keep:]
	}
	subs := b.subs
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *StatusBus) Errorf(message string)   { b.Publish(SeverityError, message) }
func (b *StatusBus) Warningf(message string) { b.Publish(SeverityWarning, message) }
func (b *StatusBus) Infof(message string)    { b.Publish(SeverityInfo, message) }

// Subscribe 返回带缓冲的事件通道。调用方不消费时事件被丢弃。
func (b *StatusBus) Subscribe(buffer int) <-chan Status {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Status, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Recent 返回最近事件的副本，最新的在末尾。
func (b *StatusBus) Recent() []Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Status, len(b.recent))
	copy(out, b.recent)
	return out
}
