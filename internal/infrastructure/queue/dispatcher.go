package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/youthcouncil/portal/internal/api/metrics"
	"github.com/youthcouncil/portal/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	sendTimeout    = 30 * time.Second
)

// Dispatcher delivers outbound mail on a fixed set of workers. Messages are
// sharded by recipient so mail to one address goes out in enqueue order.
type Dispatcher struct {
	workers []chan ports.MailMessage
	mailer  ports.Mailer
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer ports.Mailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.MailMessage, numWorkers),
		mailer:  mailer,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.MailMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers drain their channel and stop
// when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands msg to the worker responsible for its recipient. A full
// worker channel drops the message rather than stall the request.
func (d *Dispatcher) Enqueue(msg ports.MailMessage) {
	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "dropped").Inc()
		d.log.Warn().
			Str("kind", msg.Kind).
			Int("worker_id", idx).
			Msg("mail queue full, message dropped")
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(to string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(to)))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch chan ports.MailMessage) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			d.drain(id, ch)
			return
		case msg := <-ch:
			d.deliver(ctx, id, msg)
		}
	}
}

// drain flushes what is still buffered with a fresh context so queued mail
// survives a graceful shutdown.
func (d *Dispatcher) drain(id int, ch chan ports.MailMessage) {
	for {
		select {
		case msg := <-ch:
			d.deliver(context.Background(), id, msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, id int, msg ports.MailMessage) {
	metrics.MailQueueDepth.WithLabelValues(strconv.Itoa(id)).Set(float64(len(d.workers[id])))

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	err := d.mailer.Send(sendCtx, msg)
	metrics.MailDeliveryDuration.WithLabelValues(msg.Kind).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "failed").Inc()
		d.log.Error().Err(err).
			Str("kind", msg.Kind).
			Int("worker_id", id).
			Msg("mail delivery failed")
		return
	}
	metrics.EmailsSentTotal.WithLabelValues(msg.Kind, "sent").Inc()
}
