package queue

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	// sendTimeout bounds one delivery so a stalled relay cannot wedge a
	// worker or Stop.
	sendTimeout = 30 * time.Second
)

// Mailer delivers a single rendered email.
type Mailer interface {
	Send(ctx context.Context, email ports.Email) error
}

// MailDispatcher routes emails to a fixed set of workers using consistent
// hashing on the recipient, so mail to one address is delivered in order.
type MailDispatcher struct {
	workers     []chan ports.Email
	mailer      Mailer
	log         zerolog.Logger
	pending     atomic.Int64
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     bool
	sendTimeout time.Duration
}

// NewMailDispatcher creates a MailDispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewMailDispatcher(numWorkers int, mailer Mailer, log zerolog.Logger) *MailDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &MailDispatcher{
		workers: make([]chan ports.Email, numWorkers),
		mailer:      mailer,
		log:         log,
		sendTimeout: sendTimeout,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.Email, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers run until Stop closes their
// queues; cancelling ctx does not drop queued mail, and every send gets its
// own deadline derived from ctx's values.
func (d *MailDispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(base, i, ch)
	}
}

// Stop closes the queues and waits for queued mail to be delivered. Emails
// enqueued afterwards are dropped.
func (d *MailDispatcher) Stop() {
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		for _, ch := range d.workers {
			close(ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// Enqueue hands email to the worker responsible for its recipient. A full
// shard drops the email rather than block the request.
func (d *MailDispatcher) Enqueue(email ports.Email) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.log.Warn().Str("to", email.To).Str("subject", email.Subject).Msg("mail dispatcher stopped, dropping email")
		return
	}
	select {
	case d.workers[d.shardIndex(email.To)] <- email:
		d.pending.Add(1)
	default:
		d.log.Warn().Str("to", email.To).Str("subject", email.Subject).Msg("mail queue full, dropping email")
	}
}

// Pending reports the number of queued, undelivered emails.
func (d *MailDispatcher) Pending() int64 {
	return d.pending.Load()
}

func (d *MailDispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(recipient)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *MailDispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.Email) {
	defer d.wg.Done()
	for email := range ch {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		err := d.mailer.Send(sendCtx, email)
		cancel()
		if err != nil {
			d.log.Error().Err(err).
				Str("to", email.To).
				Str("subject", email.Subject).
				Int("worker_id", id).
				Msg("email delivery failed")
		}
		d.pending.Add(-1)
	}
}
