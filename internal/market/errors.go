package market

import "errors"

// 中文说明：
// 采集层错误分类：
// - ErrRateLimited：上游限流（HTTP 429），固定冷却后重试
// - ErrUnavailable：本次尝试终止（含畸形响应），触发合成数据兜底
// 其余错误视为瞬态，按指数退避重试。

var (
	ErrRateLimited = errors.New("upstream rate limited")
	ErrUnavailable = errors.New("upstream unavailable")
)

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
