package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Aleph-Alpha/embedding-pipeline/internal/coordinator"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/kafka"
	"github.com/Aleph-Alpha/embedding-pipeline/v1/logger"
)

type fakeMessage struct {
	body      []byte
	partition int
	offset    int64
	commits   *commitLog
}

func (m *fakeMessage) Body() []byte              { return m.body }
func (m *fakeMessage) Key() string               { return "" }
func (m *fakeMessage) Header() map[string]string { return nil }
func (m *fakeMessage) Topic() string             { return "embedding-generation" }
func (m *fakeMessage) Partition() int            { return m.partition }
func (m *fakeMessage) Offset() int64             { return m.offset }
func (m *fakeMessage) CommitMsg() error          { return m.commits.add(m.partition, m.offset) }

type commitLog struct {
	mu      sync.Mutex
	highest map[int]int64
	all     []int64
}

func (c *commitLog) add(partition int, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.highest == nil {
		c.highest = make(map[int]int64)
	}
	if offset > c.highest[partition] {
		c.highest[partition] = offset
	}
	c.all = append(c.all, offset)
	return nil
}

func (c *commitLog) snapshot() map[int]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int]int64, len(c.highest))
	for k, v := range c.highest {
		out[k] = v
	}
	return out
}

// sliceSource emits its messages, then blocks until ctx is cancelled.
type sliceSource struct {
	messages []kafka.Message
	err      error
}

func (s *sliceSource) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan kafka.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(chan kafka.Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for _, m := range s.messages {
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
		<-ctx.Done()
	}()
	return out, nil
}

type fakeHandler struct {
	counters coordinator.Counters
	mu       sync.Mutex
	handled  int
	delay    func(body []byte) time.Duration
	panicOn  string
}

func (h *fakeHandler) Handle(_ context.Context, body []byte, _ map[string]string) coordinator.Outcome {
	if h.panicOn != "" && string(body) == h.panicOn {
		panic("handler exploded")
	}
	if h.delay != nil {
		time.Sleep(h.delay(body))
	}
	h.mu.Lock()
	h.handled++
	h.mu.Unlock()
	return coordinator.OutcomeCompleted
}

func (h *fakeHandler) Counters() *coordinator.Counters { return &h.counters }

func (h *fakeHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.handled
}

func makeMessages(commits *commitLog, partitions, perPartition int) []kafka.Message {
	var out []kafka.Message
	for o := 1; o <= perPartition; o++ {
		for p := 0; p < partitions; p++ {
			out = append(out, &fakeMessage{
				body:      []byte(fmt.Sprintf("p%d-o%d", p, o)),
				partition: p,
				offset:    int64(o),
				commits:   commits,
			})
		}
	}
	return out
}

func TestWorker_HandlesAndCommitsEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	commits := &commitLog{}
	source := &sliceSource{messages: makeMessages(commits, 3, 20)}
	handler := &fakeHandler{delay: func(body []byte) time.Duration {
		// Uneven durations make completion order differ from consumption order.
		return time.Duration(len(body)%3) * time.Millisecond
	}}

	w, err := New(Config{Concurrency: 4, ShutdownTimeout: 5 * time.Second, ReportInterval: -1}, source, handler, logger.Nop{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return handler.count() == 60 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual(map[int]int64{0: 20, 1: 20, 2: 20}, commits.snapshot())
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, w.offsets.outstanding())
}

func TestWorker_SourceError(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	w, err := New(Config{ReportInterval: -1}, &sliceSource{err: kafka.ErrNoConsumer}, &fakeHandler{}, nil)
	require.NoError(t, err)
	defer w.pool.Release()

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, kafka.ErrNoConsumer)
}

func TestWorker_PanicsReachThePanicHandler(t *testing.T) {
	commits := &commitLog{}
	msgs := makeMessages(commits, 1, 3)
	handler := &fakeHandler{panicOn: "p0-o2"}

	panics := make(chan interface{}, 1)
	w, err := newWorker(Config{Concurrency: 2, ShutdownTimeout: time.Second, ReportInterval: -1},
		&sliceSource{messages: msgs}, handler, logger.Nop{}, func(p interface{}) { panics <- p })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case p := <-panics:
		assert.Equal(t, "handler exploded", p)
	case <-time.After(5 * time.Second):
		t.Fatal("panic handler was not called")
	}
	require.Eventually(t, func() bool { return handler.count() == 2 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.LessOrEqual(t, commits.snapshot()[0], int64(1), "nothing past the panicked message is committed")
}

func TestWorker_ShutdownTimeout(t *testing.T) {
	commits := &commitLog{}
	release := make(chan struct{})
	handler := &fakeHandler{delay: func([]byte) time.Duration {
		<-release
		return 0
	}}
	w, err := New(Config{Concurrency: 1, ShutdownTimeout: 50 * time.Millisecond, ReportInterval: -1},
		&sliceSource{messages: makeMessages(commits, 1, 1)}, handler, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return w.pool.Running() == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()

	err = <-done
	assert.True(t, errors.Is(err, ErrShutdownTimeout))
	close(release)
}

func TestOffsetTracker_CommitsInOrder(t *testing.T) {
	commits := &commitLog{}
	tr := newOffsetTracker()
	msgs := makeMessages(commits, 1, 4)

	p := make([]*pending, len(msgs))
	for i, m := range msgs {
		p[i] = tr.track(m)
	}

	_, ok := tr.complete(p[2])
	assert.False(t, ok, "offset 3 waits for 1 and 2")
	_, ok = tr.complete(p[1])
	assert.False(t, ok)

	last, ok := tr.complete(p[0])
	require.True(t, ok)
	assert.Equal(t, int64(3), last.Offset(), "1..3 become committable together")
	assert.Equal(t, 1, tr.outstanding())

	last, ok = tr.complete(p[3])
	require.True(t, ok)
	assert.Equal(t, int64(4), last.Offset())
	assert.Zero(t, tr.outstanding())
}

func TestOffsetTracker_PartitionsAreIndependent(t *testing.T) {
	commits := &commitLog{}
	tr := newOffsetTracker()
	msgs := makeMessages(commits, 2, 1)

	a := tr.track(msgs[0])
	b := tr.track(msgs[1])

	last, ok := tr.complete(b)
	require.True(t, ok)
	assert.Equal(t, 1, last.Partition())

	last, ok = tr.complete(a)
	require.True(t, ok)
	assert.Equal(t, 0, last.Partition())
}
