package notify

import (
	"context"

	"notai_engine/internal/model"
)

// Notifier 在一整批账号处理完毕后收到汇总。实现不应阻塞太久，也不返回错误：
// 通知失败只记录日志。
type Notifier interface {
	NotifyBatchFinished(ctx context.Context, summary model.BatchSummary)
}
