package stats

import (
	"sync/atomic"
	"time"
)

// Counter accumulates events between publishes. Drain resets it.
//
// The name is not held in the handle itself; the registry owns the
// name → handle mapping so the hot value stays small.
type Counter struct {
	val atomic.Uint64
	reg *Registry
}

func (c *Counter) Inc() { c.val.Add(1) }

func (c *Counter) Add(v uint64) { c.val.Add(v) }

func (c *Counter) Read() uint64 { return c.val.Load() }

func (c *Counter) Drain() uint64 { return c.val.Swap(0) }

// Close deregisters the handle. Any undrained value is buffered and
// emitted with the next publish.
func (c *Counter) Close() { c.reg.removeCounter(c) }

// Gauge tracks a level plus its high-water mark since the last drain,
// so short spikes survive until the next publish.
type Gauge struct {
	val atomic.Uint64
	max atomic.Uint64
	reg *Registry
}

func (g *Gauge) Set(v uint64) {
	g.val.Store(v)
	for {
		prev := g.max.Load()
		if prev >= v || g.max.CompareAndSwap(prev, v) {
			return
		}
	}
}

func (g *Gauge) Read() uint64 { return g.val.Load() }

// Drain returns the high-water mark and rearms it at the current
// level.
func (g *Gauge) Drain() uint64 { return g.max.Swap(g.val.Load()) }

func (g *Gauge) Close() { g.reg.removeGauge(g) }

// Timing accumulates elapsed durations between publishes.
type Timing struct {
	ns  atomic.Uint64
	reg *Registry
}

func (t *Timing) Add(d time.Duration) { t.ns.Add(uint64(d.Nanoseconds())) }

func (t *Timing) Read() time.Duration { return time.Duration(t.ns.Load()) }

func (t *Timing) Drain() time.Duration {
	return time.Duration(t.ns.Swap(0))
}

func (t *Timing) Close() { t.reg.removeTiming(t) }
