package mixing

import (
	"context"
	"mixer/lib/log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/tomb.v2"
	"k8s.io/utils/clock"
)

// Queue is a temporal mixing queue. Ingest may be called from any goroutine;
// the buffer and registry are only touched while holding mutex.
type Queue struct {
	options  *Options
	clock    clock.Clock
	logger   *zap.SugaredLogger
	buffer   Buffer
	registry *Registry

	mutex       sync.Mutex
	subscribers []Subscriber
	//stale holds keys whose packets outlived their window because Delete failed
	stale map[string]struct{}

	lifeMutex sync.Mutex
	life      *tomb.Tomb
	closeOnce sync.Once
	closeErr  error
}

func New(buffer Buffer, opts ...Option) *Queue {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.idleInterval <= 0 {
		options.idleInterval = options.mixingDelay
	}
	if options.logger == nil {
		options.logger = log.Named("mixing")
	}
	return &Queue{
		options:  options,
		clock:    options.clock,
		logger:   options.logger.With("queue", options.name),
		buffer:   buffer,
		registry: NewRegistry(options.clock),
		stale:    map[string]struct{}{},
	}
}

// Subscribe registers a receiver for every closed window.
func (q *Queue) Subscribe(subscriber Subscriber) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.subscribers = append(q.subscribers, subscriber)
}

// Bind feeds the packets of source into the queue and starts the scheduler
// the first time it is called.
func (q *Queue) Bind(ctx context.Context, source Source) {
	source.Subscribe(func(packet Packet) error {
		return q.Ingest(ctx, packet)
	})
	q.Start(ctx)
}

// Start runs the scheduler until ctx is done or Close is called. Calls after
// the first one are no-ops.
func (q *Queue) Start(ctx context.Context) {
	q.lifeMutex.Lock()
	defer q.lifeMutex.Unlock()
	if q.life != nil {
		return
	}
	life, lifeCtx := tomb.WithContext(ctx)
	q.life = life
	life.Go(func() error {
		return q.run(lifeCtx)
	})
	q.logger.Infow("scheduler started.",
		"delay", q.options.mixingDelay,
		"signatureSpecificDelay", q.options.signatureSpecificDelay,
		"allowDuplicates", q.options.allowDuplicates)
}

// Close stops the scheduler and closes the buffer. Open windows are dropped.
// Later calls return the result of the first one.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		q.lifeMutex.Lock()
		life := q.life
		q.lifeMutex.Unlock()
		if life != nil {
			life.Kill(nil)
			if err := life.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				q.logger.Errorw("scheduler stopped with error.", "err", err)
			}
		}
		q.closeErr = q.buffer.Close()
	})
	return q.closeErr
}

// Pending returns the number of open windows.
func (q *Queue) Pending() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.registry.Len()
}

// Ingest files a packet into the window of its key, opening one if needed.
func (q *Queue) Ingest(ctx context.Context, packet Packet) error {
	if packet.Key == "" {
		packetsRejected.WithLabelValues(q.options.name).Inc()
		return ErrMissingKey
	}
	if packet.Time.IsZero() {
		packet.Time = q.clock.Now()
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()
	defer q.updatePending()
	if q.options.allowDuplicates {
		return q.produce(ctx, packet)
	}
	return q.produceNoDuplicate(ctx, packet)
}

func (q *Queue) produce(ctx context.Context, packet Packet) error {
	if !q.registry.IsKnown(packet.Key) {
		return q.open(ctx, packet)
	}
	return q.insert(ctx, packet)
}

func (q *Queue) produceNoDuplicate(ctx context.Context, packet Packet) error {
	if !q.registry.IsKnown(packet.Key) {
		return q.open(ctx, packet)
	}

	count, err := q.buffer.Count(ctx, packet.Key, packet.Origin)
	if err != nil {
		storeErrors.WithLabelValues(q.options.name, "count").Inc()
		return errors.WithMessagef(err, "can't count packets of key %s", packet.Key)
	}
	if count > 0 {
		q.logger.Debugw("duplicate origin, pushing out window.", "key", packet.Key, "origin", packet.Origin)
		pushouts.WithLabelValues(q.options.name).Inc()
		q.flush(ctx, packet.Key, true)
		return q.open(ctx, packet)
	}
	return q.insert(ctx, packet)
}

// open starts a window with its first packet. The window is registered only
// once the packet is buffered, and never on top of stale packets.
func (q *Queue) open(ctx context.Context, packet Packet) error {
	if err := q.purge(ctx, packet.Key); err != nil {
		packetsRejected.WithLabelValues(q.options.name).Inc()
		return err
	}
	if err := q.insert(ctx, packet); err != nil {
		return err
	}
	if err := q.registry.Add(packet.Key, q.options.mixingDelay); err != nil {
		return errors.WithMessage(err, "registry out of sync")
	}
	return nil
}

// purge retries the delete of a key left behind by a failed flush.
func (q *Queue) purge(ctx context.Context, key string) error {
	if _, ok := q.stale[key]; !ok {
		return nil
	}
	if err := q.buffer.Delete(ctx, key); err != nil {
		storeErrors.WithLabelValues(q.options.name, "delete").Inc()
		return errors.WithMessagef(err, "can't clear stale packets of key %s", key)
	}
	delete(q.stale, key)
	q.logger.Infow("stale packets cleared.", "key", key)
	return nil
}

func (q *Queue) insert(ctx context.Context, packet Packet) error {
	if err := q.buffer.Insert(ctx, packet); err != nil {
		storeErrors.WithLabelValues(q.options.name, "insert").Inc()
		return errors.WithMessagef(err, "can't insert packet of key %s", packet.Key)
	}
	packetsIngested.WithLabelValues(q.options.name).Inc()
	return nil
}

func (q *Queue) run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		sleep := q.step(ctx)
		if sleep <= 0 {
			continue
		}
		timer := q.clock.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C():
		}
	}
}

// step either flushes the head window and returns zero, or returns how long
// the scheduler should sleep before looking again.
func (q *Queue) step(ctx context.Context) time.Duration {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for key := range q.stale {
		if err := q.purge(ctx, key); err != nil {
			q.logger.Debugw("stale packets still buffered.", "key", key, "err", err)
		}
	}
	head, ok := q.registry.Peek()
	if !ok {
		return q.options.idleInterval
	}
	if q.options.signatureSpecificDelay {
		if remaining := head.Deadline.Sub(q.clock.Now()); remaining > 0 {
			return remaining
		}
	}
	q.flush(ctx, head.Key, false)
	q.updatePending()
	return 0
}

// flush reads, emits and deletes everything buffered for key, then drops its
// window. A failed read drops the window without emitting, a failed delete
// marks the key stale until purge succeeds. Must hold mutex.
func (q *Queue) flush(ctx context.Context, key string, pushout bool) {
	defer q.registry.Remove(key)

	packets, err := q.buffer.Query(ctx, key)
	if err != nil {
		storeErrors.WithLabelValues(q.options.name, "query").Inc()
		q.logger.Errorw("can't read window, dropping it.", "key", key, "err", err)
	} else if len(packets) > 0 {
		batch := Batch{Key: key, Packets: packets, Pushout: pushout}
		for _, subscriber := range q.subscribers {
			subscriber(batch)
		}
		batchesEmitted.WithLabelValues(q.options.name).Inc()
		batchSize.WithLabelValues(q.options.name).Observe(float64(len(packets)))
		q.logger.Debugw("window flushed.", "key", key, "size", len(packets), "pushout", pushout)
	}

	if err = q.buffer.Delete(ctx, key); err != nil {
		storeErrors.WithLabelValues(q.options.name, "delete").Inc()
		q.logger.Errorw("can't clear window.", "key", key, "err", err)
		q.stale[key] = struct{}{}
	}
}

func (q *Queue) updatePending() {
	pendingWindows.WithLabelValues(q.options.name).Set(float64(q.registry.Len()))
}
