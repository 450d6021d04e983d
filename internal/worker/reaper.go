package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-archiver/internal/gateway"
)

// Reaper deletes conversation channels after a grace delay, giving
// participants time to read the closing notice. Deletion failures are
// logged, not retried.
type Reaper struct {
	chat    gateway.ChatGateway
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewReaper constructs the worker.
func NewReaper(chat gateway.ChatGateway, logger *zap.Logger) *Reaper {
	return &Reaper{chat: chat, logger: logger, timeout: 30 * time.Second}
}

// Schedule arms a one-shot deletion of the channel after delay.
func (r *Reaper) Schedule(channelID string, delay time.Duration) {
	r.wg.Add(1)
	time.AfterFunc(delay, func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.chat.DeleteChannel(ctx, channelID); err != nil {
			r.logger.Warn("channel deletion failed", zap.String("channel_id", channelID), zap.Error(err))
			return
		}
		r.logger.Info("channel deleted", zap.String("channel_id", channelID))
	})
}

// Wait blocks until all scheduled deletions completed. Used on shutdown.
func (r *Reaper) Wait() {
	r.wg.Wait()
}
