package notifier

import (
	"context"
	"sync"

	"go.uber.org/zap"

	logger "github.com/koinonia-app/QueueChat/middleware/log"
)

// Submitter is where the dispatcher hands its delivery jobs. Satisfied by
// workerpool.Pool.
type Submitter interface {
	Submit(job func())
}

// Dispatcher fans an event out to a member list through the worker pool.
// Delivery errors are logged and swallowed: by the time the dispatcher runs,
// the state transition that produced the event has already committed.
type Dispatcher struct {
	notifier Notifier
	pool     Submitter
	logger   *logger.Logger
}

// NewDispatcher 创建通知分发器
func NewDispatcher(n Notifier, pool Submitter, log *logger.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, pool: pool, logger: log}
}

// Fanout delivers the event to every user in the list asynchronously.
func (d *Dispatcher) Fanout(ctx context.Context, userIDs []uint, eventKind string, payload any) {
	traceID := logger.GetTraceID(ctx)
	for _, userID := range userIDs {
		uid := userID
		d.pool.Submit(func() {
			// Detach from the request context: the HTTP request may be
			// done before the worker picks this up.
			bg := logger.WithTraceID(context.Background(), traceID)
			if err := d.notifier.Notify(bg, uid, eventKind, payload); err != nil {
				d.logger.WarnContext(bg, "notification delivery failed",
					zap.Uint("user_id", uid),
					zap.String("event_kind", eventKind),
					zap.Error(err),
				)
			}
		})
	}
}

// FanoutSync delivers to every user and waits for completion. Only tests
// need the synchronous form.
func (d *Dispatcher) FanoutSync(ctx context.Context, userIDs []uint, eventKind string, payload any) {
	var wg sync.WaitGroup
	for _, userID := range userIDs {
		uid := userID
		wg.Add(1)
		d.pool.Submit(func() {
			defer wg.Done()
			if err := d.notifier.Notify(ctx, uid, eventKind, payload); err != nil {
				d.logger.WarnContext(ctx, "notification delivery failed",
					zap.Uint("user_id", uid),
					zap.String("event_kind", eventKind),
					zap.Error(err),
				)
			}
		})
	}
	wg.Wait()
}
