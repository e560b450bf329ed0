package coordinator

import "sync/atomic"

// Counters are the pipeline totals shared by every in-flight message.
// The zero value is ready to use.
type Counters struct {
	received  atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Received  int64 `json:"received"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

func (c *Counters) Received() int64  { return c.received.Load() }
func (c *Counters) Processed() int64 { return c.processed.Load() }
func (c *Counters) Failed() int64    { return c.failed.Load() }
func (c *Counters) Dropped() int64   { return c.dropped.Load() }

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		Received:  c.received.Load(),
		Processed: c.processed.Load(),
		Failed:    c.failed.Load(),
		Dropped:   c.dropped.Load(),
	}
}
