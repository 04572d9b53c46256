package mixing

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	testingclock "k8s.io/utils/clock/testing"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var epoch = time.Unix(1700000000, 0).UTC()

// mapBuffer is an in-process Buffer with switchable failures.
type mapBuffer struct {
	mutex   sync.Mutex
	packets map[string][]Packet
	deletes int
	closed  bool

	failInsert error
	failQuery  error
	failDelete error
	failCount  error
}

func newMapBuffer() *mapBuffer {
	return &mapBuffer{packets: map[string][]Packet{}}
}

func (b *mapBuffer) Insert(_ context.Context, packet Packet) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.failInsert != nil {
		return b.failInsert
	}
	b.packets[packet.Key] = append(b.packets[packet.Key], packet)
	return nil
}

func (b *mapBuffer) Query(_ context.Context, key string) ([]Packet, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.failQuery != nil {
		return nil, b.failQuery
	}
	return append([]Packet(nil), b.packets[key]...), nil
}

func (b *mapBuffer) Delete(_ context.Context, key string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.deletes++
	if b.failDelete != nil {
		return b.failDelete
	}
	delete(b.packets, key)
	return nil
}

func (b *mapBuffer) Count(_ context.Context, key string, origin string) (int, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.failCount != nil {
		return 0, b.failCount
	}
	count := 0
	for _, packet := range b.packets[key] {
		if packet.Origin == origin {
			count++
		}
	}
	return count, nil
}

func (b *mapBuffer) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	return nil
}

func (b *mapBuffer) size() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	size := 0
	for _, packets := range b.packets {
		size += len(packets)
	}
	return size
}

type collector struct {
	mutex   sync.Mutex
	batches []Batch
	times   []time.Time
}

func (c *collector) receive(batch Batch) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.batches = append(c.batches, batch)
	c.times = append(c.times, time.Now())
}

func (c *collector) all() []Batch {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]Batch(nil), c.batches...)
}

func (c *collector) len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.batches)
}

type fakeSource struct {
	handlers []func(packet Packet) error
}

func (s *fakeSource) Subscribe(handler func(packet Packet) error) {
	s.handlers = append(s.handlers, handler)
}

func (s *fakeSource) send(packet Packet) error {
	for _, handler := range s.handlers {
		if err := handler(packet); err != nil {
			return err
		}
	}
	return nil
}

func newTestQueue(t *testing.T, buffer Buffer, opts ...Option) (*Queue, *testingclock.FakeClock, *collector) {
	t.Helper()
	c := testingclock.NewFakeClock(epoch)
	opts = append([]Option{WithClock(c), WithLogger(zap.NewNop().Sugar()), WithName(t.Name())}, opts...)
	q := New(buffer, opts...)
	received := &collector{}
	q.Subscribe(received.receive)
	t.Cleanup(func() {
		_ = q.Close()
	})
	return q, c, received
}

func newPacket(key, origin string, body string) Packet {
	return Packet{Key: key, Origin: origin, Body: []byte(body)}
}

func bodies(batch Batch) []string {
	out := make([]string, 0, len(batch.Packets))
	for _, p := range batch.Packets {
		out = append(out, string(p.Body))
	}
	sort.Strings(out)
	return out
}

func TestNew_Defaults(t *testing.T) {
	q := New(newMapBuffer(), WithLogger(zap.NewNop().Sugar()))
	assert.Equal(t, DefaultMixingDelay, q.options.mixingDelay)
	assert.Equal(t, DefaultMixingDelay, q.options.idleInterval)
	assert.False(t, q.options.signatureSpecificDelay)
	assert.False(t, q.options.allowDuplicates)
	assert.Equal(t, defaultName, q.options.name)

	q = New(newMapBuffer(), WithLogger(zap.NewNop().Sugar()),
		WithMixingDelay(time.Second), WithIdleInterval(time.Minute), WithMixingDelay(-1))
	assert.Equal(t, time.Second, q.options.mixingDelay)
	assert.Equal(t, time.Minute, q.options.idleInterval)
}

func TestIngest_MissingKey(t *testing.T) {
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	err := q.Ingest(context.Background(), Packet{Origin: "o1", Body: []byte("x")})
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 0, buffer.size())
	assert.Equal(t, q.options.idleInterval, q.step(context.Background()))
	assert.Empty(t, received.all())
}

func TestIngest_StampsArrivalTime(t *testing.T) {
	buffer := newMapBuffer()
	q, c, _ := newTestQueue(t, buffer)
	c.Step(time.Second)

	require.NoError(t, q.Ingest(context.Background(), newPacket("k1", "o1", "a")))
	at := epoch.Add(-time.Hour)
	require.NoError(t, q.Ingest(context.Background(), Packet{Key: "k2", Origin: "o1", Time: at}))

	assert.Equal(t, epoch.Add(time.Second), buffer.packets["k1"][0].Time)
	assert.Equal(t, at, buffer.packets["k2"][0].Time)
}

func TestStep_BestEffortFlushesHeadRegardlessOfDeadline(t *testing.T) {
	ctx := context.Background()
	q, _, received := newTestQueue(t, newMapBuffer())

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o2", "b")))
	require.NoError(t, q.Ingest(ctx, newPacket("k2", "o1", "c")))
	assert.Equal(t, 2, q.Pending())

	assert.Equal(t, time.Duration(0), q.step(ctx))
	assert.Equal(t, time.Duration(0), q.step(ctx))
	assert.Equal(t, DefaultMixingDelay, q.step(ctx))

	batches := received.all()
	require.Len(t, batches, 2)
	assert.Equal(t, "k1", batches[0].Key)
	assert.Equal(t, []string{"a", "b"}, bodies(batches[0]))
	assert.False(t, batches[0].Pushout)
	assert.Equal(t, "k2", batches[1].Key)
	assert.Equal(t, []string{"c"}, bodies(batches[1]))
	assert.Equal(t, 0, q.Pending())
}

func TestStep_AccurateWaitsForDeadline(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, c, received := newTestQueue(t, buffer, WithSignatureSpecificDelay(true))

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	assert.Equal(t, 25*time.Millisecond, q.step(ctx))

	c.Step(10 * time.Millisecond)
	assert.Equal(t, 15*time.Millisecond, q.step(ctx))
	assert.Empty(t, received.all())

	c.Step(15 * time.Millisecond)
	assert.Equal(t, time.Duration(0), q.step(ctx))
	batches := received.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a"}, bodies(batches[0]))
	assert.Equal(t, 0, buffer.size())
	assert.Equal(t, 0, q.Pending())
}

func TestIngest_AllowDuplicatesAccumulates(t *testing.T) {
	ctx := context.Background()
	q, _, received := newTestQueue(t, newMapBuffer(), WithAllowDuplicates(true))

	for _, body := range []string{"a", "b", "c"} {
		require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", body)))
	}
	assert.Empty(t, received.all())
	assert.Equal(t, 1, q.Pending())

	q.step(ctx)
	batches := received.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a", "b", "c"}, bodies(batches[0]))
	assert.False(t, batches[0].Pushout)
}

func TestIngest_RepeatedOriginPushesOut(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, c, received := newTestQueue(t, buffer, WithSignatureSpecificDelay(true))

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "first")))
	c.Step(5 * time.Millisecond)
	require.NoError(t, q.Ingest(ctx, newPacket("k2", "o1", "other")))
	c.Step(5 * time.Millisecond)
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "second")))

	batches := received.all()
	require.Len(t, batches, 1)
	assert.Equal(t, "k1", batches[0].Key)
	assert.Equal(t, []string{"first"}, bodies(batches[0]))
	assert.True(t, batches[0].Pushout)
	assert.Equal(t, 2, q.Pending())

	head, ok := q.registry.Peek()
	require.True(t, ok)
	assert.Equal(t, "k2", head.Key)

	c.Step(20 * time.Millisecond)
	assert.Equal(t, time.Duration(0), q.step(ctx))
	assert.Equal(t, 5*time.Millisecond, q.step(ctx))

	c.Step(5 * time.Millisecond)
	assert.Equal(t, time.Duration(0), q.step(ctx))

	batches = received.all()
	require.Len(t, batches, 3)
	assert.Equal(t, "k2", batches[1].Key)
	assert.Equal(t, "k1", batches[2].Key)
	assert.Equal(t, []string{"second"}, bodies(batches[2]))
	assert.False(t, batches[2].Pushout)
	assert.Equal(t, 0, buffer.size())
}

func TestIngest_DifferentOriginJoinsWindow(t *testing.T) {
	ctx := context.Background()
	q, _, received := newTestQueue(t, newMapBuffer())

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o2", "b")))
	assert.Empty(t, received.all())

	q.step(ctx)
	batches := received.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a", "b"}, bodies(batches[0]))
}

func TestFlush_QueryFailureDropsWindow(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	buffer.failQuery = errors.New("disk on fire")

	assert.Equal(t, time.Duration(0), q.step(ctx))
	assert.Empty(t, received.all())
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 1, buffer.deletes)

	buffer.failQuery = nil
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "b")))
	q.step(ctx)
	batches := received.all()
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"b"}, bodies(batches[0]))
}

func TestFlush_DeleteFailureStillClosesWindow(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	buffer.failDelete = errors.New("read only")
	q.step(ctx)

	assert.Len(t, received.all(), 1)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 1, buffer.size())

	// the leftover packet is cleared before the next window of k1 opens.
	buffer.failDelete = nil
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o2", "b")))
	assert.Equal(t, 1, buffer.size())
	q.step(ctx)

	batches := received.all()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a"}, bodies(batches[0]))
	assert.Equal(t, []string{"b"}, bodies(batches[1]))
	assert.Equal(t, 0, buffer.size())
}

func TestFlush_DeleteFailureRejectsUntilCleared(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	failure := errors.New("read only")
	buffer.failDelete = failure
	q.step(ctx)

	assert.ErrorIs(t, q.Ingest(ctx, newPacket("k1", "o1", "b")), failure)
	assert.Equal(t, 0, q.Pending())
	assert.Equal(t, 1, buffer.size())

	// other keys are unaffected
	buffer.failDelete = nil
	require.NoError(t, q.Ingest(ctx, newPacket("k2", "o1", "c")))

	// an idle step retries the delete
	q.step(ctx)
	assert.Equal(t, 0, buffer.size())
	batches := received.all()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a"}, bodies(batches[0]))
	assert.Equal(t, []string{"c"}, bodies(batches[1]))
}

func TestIngest_PushoutDeleteFailureDoesNotRepeat(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	buffer.failDelete = errors.New("read only")
	assert.Error(t, q.Ingest(ctx, newPacket("k1", "o1", "b")))
	assert.Error(t, q.Ingest(ctx, newPacket("k1", "o1", "c")))

	batches := received.all()
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Pushout)
	assert.Equal(t, []string{"a"}, bodies(batches[0]))
	assert.Equal(t, 0, q.Pending())

	buffer.failDelete = nil
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "d")))
	q.step(ctx)
	batches = received.all()
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"d"}, bodies(batches[1]))
}

func TestIngest_FirstInsertFailureOpensNoWindow(t *testing.T) {
	ctx := context.Background()
	for _, allowDuplicates := range []bool{false, true} {
		buffer := newMapBuffer()
		q, _, received := newTestQueue(t, buffer, WithAllowDuplicates(allowDuplicates))

		buffer.failInsert = errors.New("disk full")
		assert.Error(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
		assert.Equal(t, 0, q.Pending())

		buffer.failInsert = nil
		require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "b")))
		assert.Equal(t, 1, q.Pending())
		q.step(ctx)
		require.Len(t, received.all(), 1)
		assert.Equal(t, []string{"b"}, bodies(received.all()[0]))
	}
}

func TestIngest_StorageFailures(t *testing.T) {
	ctx := context.Background()
	buffer := newMapBuffer()
	q, _, received := newTestQueue(t, buffer)

	failure := errors.New("connection refused")
	buffer.failInsert = failure
	err := q.Ingest(ctx, newPacket("k1", "o1", "a"))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 0, buffer.size())

	buffer.failInsert = nil
	buffer.failCount = failure
	err = q.Ingest(ctx, newPacket("k1", "o1", "b"))
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, 0, buffer.size())
	assert.Empty(t, received.all())
}

func TestQueue_MultipleSubscribers(t *testing.T) {
	ctx := context.Background()
	q, _, first := newTestQueue(t, newMapBuffer())
	second := &collector{}
	q.Subscribe(second.receive)

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	q.step(ctx)
	assert.Equal(t, first.all(), second.all())
	assert.Equal(t, 1, second.len())
}

func TestBind_StartsSchedulerOnce(t *testing.T) {
	ctx := context.Background()
	q, c, received := newTestQueue(t, newMapBuffer())

	first, second := &fakeSource{}, &fakeSource{}
	q.Bind(ctx, first)
	life := q.life
	require.NotNil(t, life)
	q.Bind(ctx, second)
	assert.Same(t, life, q.life)

	assert.Eventually(t, c.HasWaiters, time.Second, time.Millisecond)
	require.NoError(t, first.send(newPacket("k1", "o1", "a")))
	require.NoError(t, second.send(newPacket("k1", "o2", "b")))
	assert.ErrorIs(t, second.send(Packet{}), ErrMissingKey)
	assert.Equal(t, 1, q.Pending())

	c.Step(DefaultMixingDelay)
	assert.Eventually(t, func() bool { return received.len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, bodies(received.all()[0]))
}

func TestRun_FakeClockAccurate(t *testing.T) {
	ctx := context.Background()
	q, c, received := newTestQueue(t, newMapBuffer(), WithSignatureSpecificDelay(true))
	q.Start(ctx)

	assert.Eventually(t, c.HasWaiters, time.Second, time.Millisecond)
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))

	// the window closes together with the pending idle timer.
	c.Step(DefaultMixingDelay - time.Millisecond)
	assert.Eventually(t, c.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 0, received.len())

	c.Step(time.Millisecond)
	assert.Eventually(t, func() bool { return received.len() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestClose(t *testing.T) {
	buffer := newMapBuffer()
	q := New(buffer, WithLogger(zap.NewNop().Sugar()))
	require.NoError(t, q.Close())
	assert.True(t, buffer.closed)

	buffer = newMapBuffer()
	q = New(buffer, WithLogger(zap.NewNop().Sugar()))
	q.Start(context.Background())
	require.NoError(t, q.Close())
	assert.True(t, buffer.closed)
}

func TestClose_Twice(t *testing.T) {
	buffer := &closeOnceBuffer{mapBuffer: newMapBuffer()}
	q := New(buffer, WithLogger(zap.NewNop().Sugar()))
	q.Start(context.Background())
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	assert.Equal(t, 1, buffer.closes)
}

// closeOnceBuffer fails on a second Close, like a closed redis client.
type closeOnceBuffer struct {
	*mapBuffer
	closes int
}

func (b *closeOnceBuffer) Close() error {
	b.closes++
	if b.closes > 1 {
		return errors.New("client is closed")
	}
	return b.mapBuffer.Close()
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	buffer := newMapBuffer()
	q := New(buffer, WithLogger(zap.NewNop().Sugar()))
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	cancel()
	assert.ErrorIs(t, q.life.Wait(), context.Canceled)
	require.NoError(t, q.Close())
}

func TestRun_RealClockAccurate(t *testing.T) {
	ctx := context.Background()
	q := New(newMapBuffer(), WithLogger(zap.NewNop().Sugar()), WithSignatureSpecificDelay(true),
		WithIdleInterval(time.Millisecond))
	received := &collector{}
	q.Subscribe(received.receive)
	q.Start(ctx)
	defer q.Close()

	start := time.Now()
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "a")))
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o2", "b")))

	assert.Eventually(t, func() bool { return received.len() == 1 }, time.Second, time.Millisecond)
	received.mutex.Lock()
	elapsed := received.times[0].Sub(start)
	received.mutex.Unlock()
	assert.GreaterOrEqual(t, elapsed, DefaultMixingDelay)
	assert.Equal(t, []string{"a", "b"}, bodies(received.all()[0]))
}

func TestRun_RealClockPushout(t *testing.T) {
	ctx := context.Background()
	q := New(newMapBuffer(), WithLogger(zap.NewNop().Sugar()), WithSignatureSpecificDelay(true))
	received := &collector{}
	q.Subscribe(received.receive)
	q.Start(ctx)
	defer q.Close()

	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "first")))
	require.NoError(t, q.Ingest(ctx, newPacket("k1", "o1", "second")))
	require.Equal(t, 1, received.len())
	assert.True(t, received.all()[0].Pushout)

	assert.Eventually(t, func() bool { return received.len() == 2 }, time.Second, time.Millisecond)
	last := received.all()[1]
	assert.False(t, last.Pushout)
	assert.Equal(t, []string{"second"}, bodies(last))
}

// {1,10} and {1,20} share a window, a repeated {1,10} pushes both out at once
// and opens a window holding only itself.
func TestRun_FakeClockPushoutFlushesWholeWindow(t *testing.T) {
	ctx := context.Background()
	q, c, received := newTestQueue(t, newMapBuffer(), WithSignatureSpecificDelay(true))
	q.Start(ctx)
	assert.Eventually(t, c.HasWaiters, time.Second, time.Millisecond)

	require.NoError(t, q.Ingest(ctx, newPacket("1", "10", "first")))
	require.NoError(t, q.Ingest(ctx, newPacket("1", "20", "second")))
	c.Step(5 * time.Millisecond)
	require.NoError(t, q.Ingest(ctx, newPacket("1", "10", "third")))

	batches := received.all()
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Pushout)
	assert.Equal(t, []string{"first", "second"}, bodies(batches[0]))
	assert.Equal(t, 1, q.Pending())

	// the fresh window ends a full delay after the repeat, not after the first packet
	c.Step(DefaultMixingDelay - 5*time.Millisecond)
	assert.Eventually(t, c.HasWaiters, time.Second, time.Millisecond)
	assert.Equal(t, 1, received.len())

	c.Step(5 * time.Millisecond)
	assert.Eventually(t, func() bool { return received.len() == 2 }, time.Second, time.Millisecond)
	last := received.all()[1]
	assert.False(t, last.Pushout)
	assert.Equal(t, []string{"third"}, bodies(last))
}

func TestRun_RealClockPushoutFlushesWholeWindow(t *testing.T) {
	ctx := context.Background()
	q := New(newMapBuffer(), WithLogger(zap.NewNop().Sugar()), WithSignatureSpecificDelay(true),
		WithIdleInterval(time.Millisecond))
	received := &collector{}
	q.Subscribe(received.receive)
	q.Start(ctx)
	defer q.Close()

	require.NoError(t, q.Ingest(ctx, newPacket("1", "10", "first")))
	require.NoError(t, q.Ingest(ctx, newPacket("1", "20", "second")))
	time.Sleep(5 * time.Millisecond)
	repeat := time.Now()
	require.NoError(t, q.Ingest(ctx, newPacket("1", "10", "third")))

	require.Equal(t, 1, received.len())
	assert.Equal(t, []string{"first", "second"}, bodies(received.all()[0]))

	assert.Eventually(t, func() bool { return received.len() == 2 }, time.Second, time.Millisecond)
	received.mutex.Lock()
	elapsed := received.times[1].Sub(repeat)
	received.mutex.Unlock()
	assert.GreaterOrEqual(t, elapsed, DefaultMixingDelay)
	assert.Equal(t, []string{"third"}, bodies(received.all()[1]))
}
