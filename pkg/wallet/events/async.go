package events

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/retry/backoff"
	xsync "github.com/code-payments/wallet-server/pkg/sync"
)

var (
	ErrQueueFull = errors.New("event queue is full")
	ErrClosed    = errors.New("publisher is closed")
)

// AsyncPublisher hands events to a set of workers so callers never block on
// the underlying transport. Events for the same transaction are delivered in
// the order they were published.
type AsyncPublisher struct {
	log        *logrus.Entry
	underlying Publisher
	collectors *metrics.Collectors
	timeout    time.Duration

	queue *xsync.StripedChannel[*Event]
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewAsyncPublisher(underlying Publisher, collectors *metrics.Collectors, workers, queueSize uint) *AsyncPublisher {
	p := &AsyncPublisher{
		log:        logrus.StandardLogger().WithField("type", "wallet/events/async"),
		underlying: underlying,
		collectors: collectors,
		timeout:    10 * time.Second,
		queue:      xsync.NewStripedChannel[*Event](workers, queueSize),
	}

	for _, ch := range p.queue.GetChannels() {
		p.wg.Add(1)
		go p.worker(ch)
	}

	return p
}

// Publish enqueues the event. It fails only if the queue for the event's
// transaction is full or the publisher is closed.
func (p *AsyncPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	if !p.queue.Send(event.Id, event) {
		p.collectors.RecordEventPublished(ErrQueueFull)
		p.log.WithFields(logrus.Fields{
			"id":     event.Id,
			"status": event.Status,
		}).Warn("dropping event, queue is full")
		return ErrQueueFull
	}
	return nil
}

func (p *AsyncPublisher) worker(ch <-chan *Event) {
	defer p.wg.Done()

	for event := range ch {
		log := p.log.WithFields(logrus.Fields{
			"id":     event.Id,
			"status": event.Status,
		})

		_, err := retry.Retry(
			func() error {
				ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
				defer cancel()
				return p.underlying.Publish(ctx, event)
			},
			retry.Limit(3),
			retry.Backoff(backoff.BinaryExponential(100*time.Millisecond), time.Second),
		)
		p.collectors.RecordEventPublished(err)
		if err != nil {
			log.WithError(err).Warn("failure publishing event")
		}
	}
}

// Close drains queued events and closes the underlying publisher.
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.queue.Close()
	p.mu.Unlock()

	p.wg.Wait()
	return p.underlying.Close()
}
