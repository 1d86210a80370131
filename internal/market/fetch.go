package market

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"fxlens/internal/logger"
)

// 中文说明：
// Fetcher 给各类别上游套同一套韧性策略：
// - 429 限流：发 ERROR 状态事件，固定冷却 60s 后重试（非指数）
// - 其它失败：指数退避 2^attempt 秒
// - 超过 maxRetries 次失败：放弃并切换到合成数据，发事件说明兜底

const (
	defaultMaxRetries        = 3
	defaultRateLimitCooldown = 60 * time.Second
	defaultHistoryLimit      = 500
)

type Fetcher struct {
	sources Resolver
	status  *StatusBus
	limit   int

	maxRetries int
	cooldown   time.Duration
	rnd        *rand.Rand

	// sleep 可注入，测试中用虚拟时钟替换。
	sleep func(ctx context.Context, d time.Duration) error
}

// Resolver 按资产类别查找数据源。
type Resolver func(class Class) (Source, bool)

type FetcherOption func(*Fetcher)

func WithHistoryLimit(limit int) FetcherOption {
	return func(f *Fetcher) {
		if limit > 0 {
			f.limit = limit
		}
	}
}

func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

func WithRand(rnd *rand.Rand) FetcherOption {
	return func(f *Fetcher) {
		if rnd != nil {
			f.rnd = rnd
		}
	}
}

func NewFetcher(resolve Resolver, status *StatusBus, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		sources:    resolve,
		status:     status,
		limit:      defaultHistoryLimit,
		maxRetries: defaultMaxRetries,
		cooldown:   defaultRateLimitCooldown,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:      sleepWithContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// FetchHistory 拉取历史 K 线。重试耗尽后返回合成数据并置 synthetic=true；
// 仅在 ctx 取消时返回错误。
func (f *Fetcher) FetchHistory(ctx context.Context, class Class, symbol, interval string) (bars []Bar, synthetic bool, err error) {
	src, ok := f.sources(class)
	if !ok {
		logger.Errorf("[fetch] no source registered for class %s", class)
		return f.fallback(class), true, nil
	}
	attempt := 0
	for {
		bars, err := src.FetchHistory(ctx, symbol, interval, f.limit)
		if err == nil {
			return bars, false, nil
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		attempt++
		if IsRateLimited(err) {
			f.status.Errorf("API Rate Limit Hit. Pausing updates for 60s.")
			logger.Errorf("[fetch] %s %s rate limited (attempt %d): %v", symbol, interval, attempt, err)
			if attempt > f.maxRetries {
				break
			}
			if serr := f.sleep(ctx, f.cooldown); serr != nil {
				return nil, false, serr
			}
			continue
		}
		if attempt > f.maxRetries {
			logger.Warnf("[fetch] %s %s giving up after %d attempts: %v", symbol, interval, attempt, err)
			break
		}
		delay := time.Duration(1<<uint(attempt)) * time.Second
		f.status.Warningf(fmt.Sprintf("Network instability. Retrying in %ds...", int(delay/time.Second)))
		logger.Warnf("[fetch] %s %s attempt %d failed, retrying in %s: %v", symbol, interval, attempt, delay, err)
		if serr := f.sleep(ctx, delay); serr != nil {
			return nil, false, serr
		}
	}
	f.announceFallback(class)
	return f.fallback(class), true, nil
}

func (f *Fetcher) fallback(class Class) []Bar {
	return GenerateSynthetic(f.rnd, 100, SeedFor(class))
}

func (f *Fetcher) announceFallback(class Class) {
	switch class {
	case ClassForex:
		f.status.Warningf("Forex API unavailable. Switched to Simulation Mode.")
	default:
		f.status.Errorf("Unable to fetch live Crypto data. Switched to Simulation Mode.")
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
