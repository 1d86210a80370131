package market

import "context"

// SourceStats 记录一个数据源的连接健康度。
type SourceStats struct {
	Reconnects      int    `json:"reconnects"`
	SubscribeErrors int    `json:"subscribe_errors"`
	LastError       string `json:"last_error,omitempty"`
}

// Source 某一资产类别的上游行情接口。
// FetchHistory 返回按时间升序的历史 K 线；错误需区分限流与其它失败
// （ErrRateLimited / ErrUnavailable / 瞬态）。
// Subscribe 返回实时更新通道；实现自带断线重连（指数退避，上限 30s），
// ctx 取消后通道关闭且不泄漏连接。
type Source interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]Bar, error)

	Subscribe(ctx context.Context, symbol, interval string) (<-chan Bar, error)

	Stats() SourceStats

	Close() error
}
