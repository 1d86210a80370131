// Package frankfurter 基于 Frankfurter 免费汇率 API 实现 market.Source。
//
// 免费接口只有日频收盘价，没有盘中数据也没有成交量。历史 K 线在收盘价
// 周围加随机噪声拟出 OHLC 结构，成交量恒为 0；实时侧没有推送可订阅，
// Subscribe 以固定节奏下发 Time 为 0 的哨兵 Bar，由存储层转成随机游走。
package frankfurter

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"fxlens/internal/logger"
	"fxlens/internal/market"
)

const (
	defaultBaseURL = "https://api.frankfurter.app"
	historyDays    = 150
	tickInterval   = 2 * time.Second
)

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration
	// Status 可选。设置后降级粒度等状况会作为状态事件广播，
	// 而不只是落日志。
	Status *market.StatusBus
}

type Source struct {
	baseURL string
	client  *http.Client
	status  *market.StatusBus
	rnd     *rand.Rand
	rndMu   sync.Mutex

	mu           sync.Mutex
	streamCancel context.CancelFunc

	statsMu sync.Mutex
	stats   market.SourceStats
}

func New(cfg Config) *Source {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Source{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		status:  cfg.Status,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchHistory 拉取近 150 天的日频汇率。symbol 形如 EURUSD，前三位为
// 基准货币后三位为报价货币。interval 无法影响粒度，非 1d 时广播
// 降级粒度的 WARNING 状态事件。
func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if len(symbol) != 6 {
		return nil, fmt.Errorf("invalid forex symbol %q", symbol)
	}
	if interval != "1d" {
		logger.Warnf("[frankfurter] only daily granularity available, simulating intraday structure from daily (requested %s)", interval)
		if s.status != nil {
			s.status.Warningf("Free Forex API only supports Daily timeframe. Simulating intraday structure from daily.")
		}
	}
	from := symbol[0:3]
	to := symbol[3:6]

	end := time.Now()
	start := end.AddDate(0, 0, -historyDays)
	url := fmt.Sprintf("%s/%s..%s?from=%s&to=%s",
		s.baseURL, start.Format("2006-01-02"), end.Format("2006-01-02"), from, to)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: frankfurter 429", market.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: frankfurter status %d", market.ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	bars, err := s.parseRates(body, to)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (s *Source) parseRates(body []byte, quote string) ([]market.Bar, error) {
	rates := gjson.GetBytes(body, "rates")
	if !rates.Exists() {
		return nil, fmt.Errorf("%w: missing rates in response", market.ErrUnavailable)
	}
	var bars []market.Bar
	rates.ForEach(func(date, day gjson.Result) bool {
		closePx := day.Get(quote).Float()
		if closePx <= 0 {
			return true
		}
		t, err := time.Parse("2006-01-02", date.String())
		if err != nil {
			return true
		}
		bars = append(bars, s.synthOHLC(t.UnixMilli(), closePx))
		return true
	})
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	return bars, nil
}

// synthOHLC 围绕日收盘价拟合出开高低。
func (s *Source) synthOHLC(ts int64, closePx float64) market.Bar {
	s.rndMu.Lock()
	r1 := s.rnd.Float64()
	r2 := s.rnd.Float64()
	r3 := s.rnd.Float64()
	s.rndMu.Unlock()

	open := closePx * (1 + (r1*0.01 - 0.005))
	high := maxF(open, closePx) * (1 + r2*0.005)
	low := minF(open, closePx) * (1 - r3*0.005)
	return market.Bar{
		Time:  ts,
		Open:  open,
		High:  high,
		Low:   low,
		Close: closePx,
	}
}

// Subscribe 每 2 秒下发一个 Time 为 0 的哨兵 Bar。
func (s *Source) Subscribe(ctx context.Context, symbol, interval string) (<-chan market.Bar, error) {
	out := make(chan market.Bar, 16)
	subCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	s.streamCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(out)
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-subCtx.Done():
				return
			case <-ticker.C:
				select {
				case out <- market.Bar{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (s *Source) Stats() market.SourceStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamCancel != nil {
		s.streamCancel()
		s.streamCancel = nil
	}
	return nil
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
