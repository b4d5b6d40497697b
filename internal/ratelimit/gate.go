package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate 是所有远程调用共用的限流闸门：任意长度为 window 的滚动窗口内最多放行 calls 次。
//
// 令牌按 window/calls 的间隔生成、桶容量为 1，因此相邻两次放行至少间隔 window/calls，
// 滚动窗口内不会超过 calls 次。Wait 阻塞直到放行，不会拒绝调用方。
type Gate struct {
	limiter *rate.Limiter
	calls   int
	window  time.Duration
}

func NewGate(calls int, window time.Duration) *Gate {
	if calls <= 0 {
		calls = 5
	}
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Gate{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(calls)), 1),
		calls:   calls,
		window:  window,
	}
}

func (g *Gate) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

func (g *Gate) Calls() int            { return g.calls }
func (g *Gate) Window() time.Duration { return g.window }
