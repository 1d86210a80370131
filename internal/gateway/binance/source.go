// Package binance 基于 go-binance 现货 SDK 实现 market.Source。
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"

	"fxlens/internal/logger"
	"fxlens/internal/market"
)

const maxHistoryLimit = 1000

type Source struct {
	cfg    Config
	client *gobinance.Client

	mu           sync.Mutex
	streamCancel context.CancelFunc

	statsMu sync.Mutex
	stats   market.SourceStats
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := gobinance.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{
		cfg:    final,
		client: client,
	}
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit).Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	out := make([]market.Bar, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Bar{
			Time:   kl.OpenTime,
			Open:   parseFloat(kl.Open),
			High:   parseFloat(kl.High),
			Low:    parseFloat(kl.Low),
			Close:  parseFloat(kl.Close),
			Volume: parseFloat(kl.Volume),
		})
	}
	return out, nil
}

// Subscribe 订阅单个交易对的 K 线流。未收盘的 K 线也会下发，
// 携带相同的 Time，由存储层原地更新。
func (s *Source) Subscribe(ctx context.Context, symbol, interval string) (<-chan market.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	interval = strings.ToLower(strings.TrimSpace(interval))
	if symbol == "" || interval == "" {
		return nil, fmt.Errorf("symbol and interval are required")
	}
	out := make(chan market.Bar, 256)
	subCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.streamCancel != nil {
		s.streamCancel()
	}
	s.streamCancel = cancel
	s.mu.Unlock()

	go func() {
		defer close(out)
		s.runKlineLoop(subCtx, symbol, interval, out)
	}()
	return out, nil
}

func (s *Source) runKlineLoop(ctx context.Context, symbol, interval string, out chan<- market.Bar) {
	delay := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		var errMu sync.Mutex
		var lastErr error
		handler := func(event *gobinance.WsKlineEvent) {
			b, ok := convertKlineEvent(event)
			if !ok {
				return
			}
			select {
			case <-ctx.Done():
				return
			case out <- b:
			default:
				logger.Warnf("[binance] kline channel full, drop %s %s", symbol, interval)
			}
		}
		errHandler := func(err error) {
			if err == nil {
				return
			}
			errMu.Lock()
			lastErr = err
			errMu.Unlock()
		}
		doneC, stopC, err := gobinance.WsKlineServe(symbol, interval, handler, errHandler)
		if err != nil {
			s.recordSubscribeError(err)
			if !sleepWithContext(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}
		delay = time.Second
		select {
		case <-ctx.Done():
			close(stopC)
			<-doneC
			return
		case <-doneC:
		}
		close(stopC)
		errMu.Lock()
		errCopy := lastErr
		errMu.Unlock()
		s.recordReconnect(errCopy)
		if !sleepWithContext(ctx, delay) {
			return
		}
		delay = nextDelay(delay)
	}
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

func (s *Source) recordSubscribeError(err error) {
	s.statsMu.Lock()
	s.stats.SubscribeErrors++
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
	logger.Warnf("[binance] subscribe %v", err)
}

func (s *Source) recordReconnect(err error) {
	s.statsMu.Lock()
	s.stats.Reconnects++
	if err != nil {
		s.stats.LastError = err.Error()
	}
	s.statsMu.Unlock()
	if err != nil {
		logger.Warnf("[binance] stream closed: %v, reconnecting", err)
	} else {
		logger.Infof("[binance] stream closed, reconnecting")
	}
}

// classify 把 SDK 错误折叠为统一的哨兵错误。
// -1003/-1015 为 Binance 的限频错误码。
func classify(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == -1003 || apiErr.Code == -1015 {
			return fmt.Errorf("%w: %s", market.ErrRateLimited, apiErr.Message)
		}
	}
	if strings.Contains(err.Error(), "429") {
		return fmt.Errorf("%w: %v", market.ErrRateLimited, err)
	}
	return err
}

func convertKlineEvent(ev *gobinance.WsKlineEvent) (market.Bar, bool) {
	if ev == nil {
		return market.Bar{}, false
	}
	b := market.Bar{
		Time:   ev.Kline.StartTime,
		Open:   parseFloat(ev.Kline.Open),
		High:   parseFloat(ev.Kline.High),
		Low:    parseFloat(ev.Kline.Low),
		Close:  parseFloat(ev.Kline.Close),
		Volume: parseFloat(ev.Kline.Volume),
	}
	if b.Time <= 0 {
		return market.Bar{}, false
	}
	return b, true
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}

func nextDelay(current time.Duration) time.Duration {
	next := current * 2
	if next > 30*time.Second {
		next = 30 * time.Second
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
