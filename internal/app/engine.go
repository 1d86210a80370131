// Package app 把采集、存储、分析、回测与增强编排成一个引擎。
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fxlens/internal/analysis/indicator"
	"fxlens/internal/analysis/signal"
	"fxlens/internal/backtest"
	"fxlens/internal/config"
	"fxlens/internal/enrich"
	"fxlens/internal/logger"
	"fxlens/internal/market"
	"fxlens/internal/scheduler"
)

// minAnalysisBars 指标结论需要的最少 K 线数，不足时只出回测与原始序列。
const minAnalysisBars = 50

// Snapshot 当前选择的完整分析快照，HTTP 层原样下发。
type Snapshot struct {
	Asset     market.Asset     `json:"asset"`
	Interval  string           `json:"interval"`
	Synthetic bool             `json:"synthetic"`
	Bars      []market.Bar     `json:"bars"`
	Verdict   *signal.Verdict  `json:"verdict,omitempty"`
	Summary   *signal.Summary  `json:"summary,omitempty"`
	Backtest  *backtest.Result `json:"backtest,omitempty"`
	UpdatedAt int64            `json:"updatedAt"`
}

// Engine 持有单一活跃选择 (标的, 周期) 的全部状态。
// 切换选择采用 last-writer-wins：旧的拉取与订阅协程被取消，
// 迟到的结果靠代数计数器拦截。存储随选择整体更换，
// 旧订阅在取消传播前合并的迟到 tick 只会落进被换下的存储。
type Engine struct {
	store    *market.Store
	capacity int
	fetcher  *market.Fetcher
	resolve  market.Resolver
	status   *market.StatusBus
	enricher *enrich.Enricher
	debounce *scheduler.Debouncer

	baseCtx context.Context

	mu           sync.Mutex
	generation   int64
	cancel       context.CancelFunc
	asset        market.Asset
	interval     string
	synthetic    bool
	indicatorCfg indicator.Config
	verdict      *signal.Verdict
	heuristic    *signal.Summary
	summary      *signal.Summary
	result       *backtest.Result
	enriched     bool
	updatedAt    int64
}

func NewEngine(cfg *config.Config, resolve market.Resolver, status *market.StatusBus, enricher *enrich.Enricher) *Engine {
	e := &Engine{
		store:        market.NewStore(cfg.Market.MaxCached),
		capacity:     cfg.Market.MaxCached,
		resolve:      resolve,
		status:       status,
		enricher:     enricher,
		indicatorCfg: cfg.Indicator,
	}
	e.fetcher = market.NewFetcher(resolve, status, market.WithHistoryLimit(cfg.Market.HistoryLimit))
	wait := time.Duration(cfg.Enrich.DebounceSeconds) * time.Second
	e.debounce = scheduler.NewDebouncer(wait, e.runEnrichment)
	return e
}

// Start 绑定根上下文并加载启动时的默认选择。
func (e *Engine) Start(ctx context.Context, sel config.SelectionConfig) error {
	e.baseCtx = ctx
	return e.Select(sel.Symbol, sel.Interval)
}

// Select 切换当前选择。校验同步完成，数据加载异步进行。
func (e *Engine) Select(symbol, interval string) error {
	asset, ok := market.LookupAsset(symbol)
	if !ok {
		return fmt.Errorf("unknown symbol %q", symbol)
	}
	if _, ok := scheduler.ParseIntervalDuration(interval); !ok {
		return fmt.Errorf("invalid interval %q", interval)
	}
	if e.baseCtx == nil {
		return fmt.Errorf("engine not started")
	}

	e.mu.Lock()
	e.generation++
	gen := e.generation
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(e.baseCtx)
	e.cancel = cancel
	e.store = market.NewStore(e.capacity)
	e.asset = asset
	e.interval = interval
	e.synthetic = false
	e.verdict = nil
	e.heuristic = nil
	e.summary = nil
	e.result = nil
	e.enriched = false
	e.debounce.Stop()
	e.mu.Unlock()

	logger.Infof("[engine] select %s %s (gen %d)", asset.Symbol, interval, gen)
	go e.load(ctx, gen, asset, interval)
	return nil
}

// SetIndicatorConfig 热更新指标参数并立刻重算。
func (e *Engine) SetIndicatorConfig(cfg indicator.Config) {
	e.mu.Lock()
	e.indicatorCfg = cfg.WithDefaults()
	gen := e.generation
	e.mu.Unlock()
	e.recompute(gen)
}

func (e *Engine) load(ctx context.Context, gen int64, asset market.Asset, interval string) {
	bars, synthetic, err := e.fetcher.FetchHistory(ctx, asset.Class, asset.Symbol, interval)
	if err != nil {
		// 只有 ctx 取消会走到这里
		return
	}
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	store := e.store
	store.Replace(bars)
	e.synthetic = synthetic
	e.mu.Unlock()
	e.recompute(gen)

	src, ok := e.resolve(asset.Class)
	if !ok {
		return
	}
	upd := market.NewUpdater(store, src, func() { e.recompute(gen) })
	upd.Run(ctx, asset.Symbol, interval)
}

// recompute 从存储快照重算回测与信号。指标结论要求 50 根以上；
// 增强结果尚未到达（或已失效）时发布启发式观点。
func (e *Engine) recompute(gen int64) {
	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	icfg := e.indicatorCfg
	store := e.store
	e.mu.Unlock()

	bars := store.Snapshot()
	res := backtest.Run(bars)

	var v *signal.Verdict
	var h *signal.Summary
	if len(bars) > minAnalysisBars {
		verdict, heur := signal.Analyze(bars, icfg)
		v, h = &verdict, &heur
	}

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		return
	}
	e.result = &res
	e.verdict = v
	e.heuristic = h
	if h == nil {
		e.summary = nil
	} else if !e.enriched {
		e.summary = h
	}
	e.updatedAt = time.Now().UnixMilli()
	shouldEnrich := e.enricher != nil && v != nil
	e.mu.Unlock()

	if shouldEnrich {
		e.debounce.Trigger()
	}
}

// runEnrichment 去抖后的增强调用。结果只在代数未变时生效。
func (e *Engine) runEnrichment() {
	e.mu.Lock()
	gen := e.generation
	v := e.verdict
	h := e.heuristic
	asset := e.asset
	interval := e.interval
	store := e.store
	e.mu.Unlock()
	if e.enricher == nil || v == nil || h == nil {
		return
	}
	last, ok := store.Last()
	if !ok {
		return
	}
	merged := e.enricher.Enrich(e.baseCtx, enrich.Request{
		Symbol:    asset.Symbol,
		AssetName: asset.Name,
		Class:     asset.Class,
		Timeframe: interval,
		Price:     last.Close,
		Verdict:   *v,
	}, *h)

	e.mu.Lock()
	if gen == e.generation {
		e.summary = &merged
		e.enriched = true
		e.updatedAt = time.Now().UnixMilli()
	}
	e.mu.Unlock()
}

// Snapshot 返回当前状态的深拷贝。
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	bars := e.store.Snapshot()
	snap := Snapshot{
		Asset:     e.asset,
		Interval:  e.interval,
		Synthetic: e.synthetic,
		Bars:      bars,
		UpdatedAt: e.updatedAt,
	}
	if e.verdict != nil {
		v := *e.verdict
		snap.Verdict = &v
	}
	if e.summary != nil {
		s := *e.summary
		snap.Summary = &s
	}
	if e.result != nil {
		r := *e.result
		snap.Backtest = &r
	}
	return snap
}

// RecentStatus 最近的状态事件，供 /api/status 使用。
func (e *Engine) RecentStatus() []market.Status {
	return e.status.Recent()
}

// SourceStats 各类别数据源的连接健康度。
func (e *Engine) SourceStats() map[string]market.SourceStats {
	out := make(map[string]market.SourceStats)
	for _, class := range []market.Class{market.ClassCrypto, market.ClassForex} {
		if src, ok := e.resolve(class); ok {
			out[string(class)] = src.Stats()
		}
	}
	return out
}

// Close 停止当前选择的采集与挂起的增强。
func (e *Engine) Close() {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	e.debounce.Stop()
}
