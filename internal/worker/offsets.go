package worker

import (
	"sync"

	"github.com/Aleph-Alpha/embedding-pipeline/v1/kafka"
)

type partitionKey struct {
	topic     string
	partition int
}

type pending struct {
	key  partitionKey
	msg  kafka.Message
	done bool
}

// offsetTracker lets messages finish in any order while offsets are committed
// in order: a partition's offset only advances past a message once every
// earlier message of that partition is done.
type offsetTracker struct {
	mu     sync.Mutex
	queues map[partitionKey][]*pending
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{queues: make(map[partitionKey][]*pending)}
}

// track must be called in consumption order.
func (t *offsetTracker) track(msg kafka.Message) *pending {
	p := &pending{key: partitionKey{msg.Topic(), msg.Partition()}, msg: msg}
	t.mu.Lock()
	t.queues[p.key] = append(t.queues[p.key], p)
	t.mu.Unlock()
	return p
}

// complete marks p done and returns the newest message that may now be
// committed, if any.
func (t *offsetTracker) complete(p *pending) (kafka.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p.done = true
	queue := t.queues[p.key]
	n := 0
	for n < len(queue) && queue[n].done {
		n++
	}
	if n == 0 {
		return nil, false
	}
	last := queue[n-1].msg
	if n == len(queue) {
		delete(t.queues, p.key)
	} else {
		t.queues[p.key] = queue[n:]
	}
	return last, true
}

// outstanding returns the number of tracked messages not yet committable.
func (t *offsetTracker) outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, q := range t.queues {
		n += len(q)
	}
	return n
}
