package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlens/internal/market"
)

const klinesBody = `[
  [1700000000000, "42000.1", "42100.5", "41900.0", "42050.2", "123.4", 1700003599999, "0", 0, "0", "0", "0"],
  [1700003600000, "42050.2", "42200.0", "42000.0", "42150.8", "98.7", 1700007199999, "0", 0, "0", "0", "0"]
]`

func TestFetchHistoryParsesKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(klinesBody))
	}))
	defer srv.Close()

	s := New(Config{RESTBaseURL: srv.URL, HTTPTimeout: 2 * time.Second})
	bars, err := s.FetchHistory(context.Background(), "btcusdt", "1H", 500)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, int64(1700000000000), bars[0].Time)
	assert.Equal(t, 42000.1, bars[0].Open)
	assert.Equal(t, 42100.5, bars[0].High)
	assert.Equal(t, 41900.0, bars[0].Low)
	assert.Equal(t, 42050.2, bars[0].Close)
	assert.Equal(t, 123.4, bars[0].Volume)
	assert.Equal(t, int64(1700003600000), bars[1].Time)
}

func TestFetchHistoryRateLimitedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"code": -1003, "msg": "Too many requests."}`))
	}))
	defer srv.Close()

	s := New(Config{RESTBaseURL: srv.URL, HTTPTimeout: 2 * time.Second})
	_, err := s.FetchHistory(context.Background(), "BTCUSDT", "1h", 500)
	require.Error(t, err)
	assert.True(t, market.IsRateLimited(err))
}

func TestFetchHistoryRejectsEmptySymbol(t *testing.T) {
	s := New(Config{})
	_, err := s.FetchHistory(context.Background(), "  ", "1h", 500)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	rateLimit := &common.APIError{Code: -1003, Message: "Too much request weight used."}
	assert.True(t, market.IsRateLimited(classify(rateLimit)))

	banned := &common.APIError{Code: -1015, Message: "Too many new orders."}
	assert.True(t, market.IsRateLimited(classify(banned)))

	badSymbol := &common.APIError{Code: -1121, Message: "Invalid symbol."}
	assert.False(t, market.IsRateLimited(classify(badSymbol)))

	assert.True(t, market.IsRateLimited(classify(errors.New("unexpected status 429"))))

	plain := errors.New("dial tcp: connection refused")
	assert.Equal(t, plain, classify(plain))
}

func TestConvertKlineEvent(t *testing.T) {
	ev := &gobinance.WsKlineEvent{
		Kline: gobinance.WsKline{
			StartTime: 1700000000000,
			Open:      "42000.1",
			High:      "42100.5",
			Low:       "41900.0",
			Close:     "42050.2",
			Volume:    "12.5",
		},
	}
	b, ok := convertKlineEvent(ev)
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), b.Time)
	assert.Equal(t, 42050.2, b.Close)
	assert.Equal(t, 12.5, b.Volume)

	_, ok = convertKlineEvent(nil)
	assert.False(t, ok)

	_, ok = convertKlineEvent(&gobinance.WsKlineEvent{})
	assert.False(t, ok, "零时间戳的事件丢弃")
}

func TestNextDelayCap(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextDelay(time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(16*time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(30*time.Second))
}
