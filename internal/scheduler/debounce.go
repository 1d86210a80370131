package scheduler

import (
	"sync"
	"time"
)

// Debouncer 尾沿去抖：最后一次 Trigger 之后静默满 wait 才执行 fn。
// 高频触发期间不会执行，只保留最后一次。fn 在独立 goroutine 中运行。
type Debouncer struct {
	wait time.Duration
	fn   func()

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(wait time.Duration, fn func()) *Debouncer {
	return &Debouncer{wait: wait, fn: fn}
}

// Trigger 重置静默窗口。
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, d.fn)
}

// Stop 取消挂起的执行。之后仍可再次 Trigger。
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
