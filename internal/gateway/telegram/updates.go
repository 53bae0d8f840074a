package telegram

import (
	"context"
	"time"

	"joinguard/internal/gateway"
	"joinguard/internal/logger"
)

var allowedUpdates = []string{"message", "callback_query", "chat_join_request"}

// GetUpdates long-polls for updates after offset. It bypasses the outbound
// rate limiter since it holds the connection open for the whole timeout.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	var updates []Update
	err := c.do(ctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": allowedUpdates,
	}, &updates)
	return updates, err
}

// UpdateHandler consumes one update. It must not block the poll loop for long.
type UpdateHandler func(ctx context.Context, update Update)

// Poller drives the getUpdates loop.
type Poller struct {
	client     *Client
	timeout    time.Duration
	offset     int64
	maxBackoff time.Duration
}

func NewPoller(client *Client, timeout time.Duration) *Poller {
	return &Poller{
		client:     client,
		timeout:    timeout,
		maxBackoff: 30 * time.Second,
	}
}

// Run polls until ctx is cancelled. Fetch errors are logged and retried
// with exponential backoff.
func (p *Poller) Run(ctx context.Context, handle UpdateHandler) {
	logger.Info("Starting update polling", "timeout", p.timeout)
	backoff := time.Second

	for ctx.Err() == nil {
		updates, err := p.client.GetUpdates(ctx, p.offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			wait := backoff
			if hint := gateway.RetryAfterOf(err); hint > 0 {
				wait = hint
			}
			logger.Warn("Failed to fetch updates", "error", err, "retry_in", wait)
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			backoff = min(backoff*2, p.maxBackoff)
			continue
		}

		backoff = time.Second
		for _, update := range updates {
			p.offset = update.UpdateID + 1
			handle(ctx, update)
		}
	}
	logger.Info("Update polling stopped")
}
