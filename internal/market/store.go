package market

import (
	"math/rand"
	"sync"
)

// MergeOutcome 描述一次实时更新合并进 Store 的结果。
type MergeOutcome int

const (
	MergeDiscarded MergeOutcome = iota
	MergeReplaced
	MergeAppended
)

// Store 有界的 K 线序列，归属于当前 (标的, 周期) 选择。
// 切换选择时整体替换，不做增量迁移。
type Store struct {
	mu   sync.RWMutex
	bars []Bar
	cap  int
}

// DefaultCapacity 与上游单次历史拉取上限一致。
const DefaultCapacity = 500

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{cap: capacity}
}

// Replace 用新的历史序列整体替换现有内容，超出容量时保留最新部分。
func (s *Store) Replace(bars []Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(bars) > s.cap {
		bars = bars[len(bars)-s.cap:]
	}
	s.bars = make([]Bar, len(bars))
	copy(s.bars, bars)
}

// Merge 按时间戳合并一条实时更新：
// 等于末根时间 → 原地替换；大于 → 追加并按容量逐出最旧；
// 小于（乱序送达）→ 静默丢弃。空 Store 直接落地首根。
func (s *Store) Merge(b Bar) MergeOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bars) == 0 {
		s.bars = append(s.bars, b)
		return MergeAppended
	}
	last := s.bars[len(s.bars)-1]
	switch {
	case b.Time == last.Time:
		s.bars[len(s.bars)-1] = b
		return MergeReplaced
	case b.Time > last.Time:
		s.bars = append(s.bars, b)
		if len(s.bars) > s.cap {
			s.bars = s.bars[1:]
		}
		return MergeAppended
	default:
		return MergeDiscarded
	}
}

// Nudge 随机游走模式：对末根收盘价做一次对称小幅扰动并扩展高低点，
// 永不追加新 K 线。扰动幅度为 close * (rand-0.5) * scale。
func (s *Store) Nudge(rnd *rand.Rand, scale float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.bars) == 0 {
		return false
	}
	last := &s.bars[len(s.bars)-1]
	move := last.Close * (rnd.Float64() - 0.5) * scale
	next := last.Close + move
	last.Close = next
	if next > last.High {
		last.High = next
	}
	if next < last.Low {
		last.Low = next
	}
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bars)
}

func (s *Store) Last() (Bar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.bars) == 0 {
		return Bar{}, false
	}
	return s.bars[len(s.bars)-1], true
}

// Snapshot 返回当前序列的副本，供指标计算与回测使用。
func (s *Store) Snapshot() []Bar {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}
