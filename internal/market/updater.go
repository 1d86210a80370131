package market

import (
	"context"
	"math/rand"
	"time"

	"fxlens/internal/logger"
)

// nudgeScale 随机游走模式下对末根收盘价的扰动系数。
const nudgeScale = 0.0005

// Updater 消费实时更新流并合并进 Store。
// 时间戳哨兵 0 表示轮询式随机游走模拟：只扰动末根收盘价，永不追加。
// 每次成功合并后触发 onMerge，由引擎重算指标与结论。
type Updater struct {
	store   *Store
	source  Source
	onMerge func()
	rnd     *rand.Rand
}

func NewUpdater(store *Store, source Source, onMerge func()) *Updater {
	return &Updater{
		store:   store,
		source:  source,
		onMerge: onMerge,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run 阻塞消费直到 ctx 取消。订阅通道关闭后重新订阅，
// 退避随失败翻倍、上限 30s；订阅成功即复位。
func (u *Updater) Run(ctx context.Context, symbol, interval string) {
	delay := time.Second
	for ctx.Err() == nil {
		ch, err := u.source.Subscribe(ctx, symbol, interval)
		if err != nil {
			logger.Warnf("[updater] subscribe %s %s failed: %v", symbol, interval, err)
			if sleepWithContext(ctx, delay) != nil {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		u.consume(ctx, ch)
		if ctx.Err() == nil {
			logger.Warnf("[updater] stream %s %s closed, resubscribing", symbol, interval)
			if sleepWithContext(ctx, delay) != nil {
				return
			}
			delay = nextDelay(delay)
		}
	}
}

func (u *Updater) consume(ctx context.Context, ch <-chan Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-ch:
			if !ok {
				return
			}
			if u.Apply(b) {
				u.notify()
			}
		}
	}
}

// Apply 应用一条更新，返回是否改变了序列内容。
func (u *Updater) Apply(b Bar) bool {
	if b.Time == 0 {
		return u.store.Nudge(u.rnd, nudgeScale)
	}
	return u.store.Merge(b) != MergeDiscarded
}

func (u *Updater) notify() {
	if u.onMerge != nil {
		u.onMerge()
	}
}

func nextDelay(current time.Duration) time.Duration {
	if current <= 0 {
		return time.Second
	}
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}
