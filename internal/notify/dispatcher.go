package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"uptimebot/internal/domain"
)

// Dispatcher decouples the tracker from the sink through a buffered
// queue: a slow or unavailable sink never stalls probing. Each event
// reaches the sink at most once; events still queued at shutdown or
// crash are lost, which is the accepted tradeoff.
type Dispatcher struct {
	logger      *zap.Logger
	sink        Sink
	queue       chan domain.NotificationEvent
	sendTimeout time.Duration

	mu   sync.Mutex
	seen map[string]struct{}
	ring []string

	stopOnce sync.Once
	done     chan struct{}
}

const seenLimit = 1024

func NewDispatcher(logger *zap.Logger, sink Sink, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Dispatcher{
		logger:      logger,
		sink:        sink,
		queue:       make(chan domain.NotificationEvent, queueSize),
		sendTimeout: 15 * time.Second,
		seen:        make(map[string]struct{}, seenLimit),
		done:        make(chan struct{}),
	}
}

// Enqueue hands an event to the delivery worker. Duplicate event IDs are
// dropped, and so is everything when the queue is full: delivery is
// at-most-once, never guaranteed.
func (d *Dispatcher) Enqueue(ev domain.NotificationEvent) {
	if !d.markSeen(ev.ID) {
		d.logger.Debug("dispatch_duplicate_dropped", zap.String("event_id", ev.ID))
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warn("dispatch_queue_full",
			zap.String("event_id", ev.ID),
			zap.String("target_id", string(ev.TargetID)),
		)
	}
}

// markSeen returns false when the id was already dispatched. The seen set
// is bounded; oldest entries roll off first.
func (d *Dispatcher) markSeen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.seen[id]; dup {
		return false
	}
	d.seen[id] = struct{}{}
	d.ring = append(d.ring, id)
	if len(d.ring) > seenLimit {
		delete(d.seen, d.ring[0])
		d.ring = d.ring[1:]
	}
	return true
}

// Run delivers queued events until ctx is cancelled. Sink failures are
// logged and the event is considered dispatched-attempted; the core never
// retries.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher_stopped", zap.Int("undelivered", len(d.queue)))
			return
		case ev := <-d.queue:
			sctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			err := d.sink.Send(sctx, ev.Principal, ev)
			cancel()
			if err != nil {
				d.logger.Warn("notify_send_error",
					zap.String("event_id", ev.ID),
					zap.String("target_id", string(ev.TargetID)),
					zap.String("transition", string(ev.Transition)),
					zap.Error(err),
				)
				continue
			}
			d.logger.Debug("notify_sent",
				zap.String("event_id", ev.ID),
				zap.String("transition", string(ev.Transition)),
			)
		}
	}
}

// Wait blocks until Run has returned.
func (d *Dispatcher) Wait() { <-d.done }
