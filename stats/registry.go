package stats

import (
	"log"
	"strings"
	"sync"
	"time"
)

// Registry owns the name → handle mapping for one stats domain. It is
// constructed explicitly and threaded through collaborators; there is
// no process-wide instance.
type Registry struct {
	mu       sync.Mutex
	counters map[string][]*Counter
	gauges   map[string][]*Gauge
	timings  map[string][]*Timing

	// values drained from closed handles, held until the next
	// publish so nothing is lost.
	deadCounters map[string]uint64
	deadGauges   map[string]uint64
	deadTimings  map[string]time.Duration

	// fatal handles invalid names and total collisions. Injectable
	// for tests; the default terminates, matching the contract that
	// a malformed stat name is a programming error.
	fatal func(format string, args ...any)
}

func NewRegistry() *Registry {
	return &Registry{
		counters:     make(map[string][]*Counter),
		gauges:       make(map[string][]*Gauge),
		timings:      make(map[string][]*Timing),
		deadCounters: make(map[string]uint64),
		deadGauges:   make(map[string]uint64),
		deadTimings:  make(map[string]time.Duration),
		fatal:        log.Fatalf,
	}
}

// ---------------- Construction ----------------

func (r *Registry) NewCounter(name string) *Counter {
	r.validate(name)
	c := &Counter{reg: r}
	r.mu.Lock()
	r.checkTotalLocked(name, counterKeys(r.counters))
	r.counters[name] = append(r.counters[name], c)
	r.mu.Unlock()
	return c
}

func (r *Registry) NewGauge(name string) *Gauge {
	r.validate(name)
	g := &Gauge{reg: r}
	r.mu.Lock()
	r.checkTotalLocked(name, gaugeKeys(r.gauges))
	r.gauges[name] = append(r.gauges[name], g)
	r.mu.Unlock()
	return g
}

func (r *Registry) NewTiming(name string) *Timing {
	r.validate(name)
	t := &Timing{reg: r}
	r.mu.Lock()
	r.timings[name] = append(r.timings[name], t)
	r.mu.Unlock()
	return t
}

// ---------------- Removal ----------------

// Handle removal swaps the tail into the vacated slot instead of
// shifting everything down; vector order carries no meaning.

func (r *Registry) removeCounter(c *Counter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.counters {
		for i, got := range vec {
			if got == c {
				vec[i] = vec[len(vec)-1]
				r.counters[name] = vec[:len(vec)-1]
				r.deadCounters[name] += c.Drain()
				if len(r.counters[name]) == 0 {
					delete(r.counters, name)
				}
				return
			}
		}
	}
}

func (r *Registry) removeGauge(g *Gauge) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.gauges {
		for i, got := range vec {
			if got == g {
				vec[i] = vec[len(vec)-1]
				r.gauges[name] = vec[:len(vec)-1]
				r.deadGauges[name] += g.Drain()
				if len(r.gauges[name]) == 0 {
					delete(r.gauges, name)
				}
				return
			}
		}
	}
}

func (r *Registry) removeTiming(t *Timing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.timings {
		for i, got := range vec {
			if got == t {
				vec[i] = vec[len(vec)-1]
				r.timings[name] = vec[:len(vec)-1]
				r.deadTimings[name] += t.Drain()
				if len(r.timings[name]) == 0 {
					delete(r.timings, name)
				}
				return
			}
		}
	}
}

// ---------------- Reads (tests and admin surfaces) ----------------

func (r *Registry) ReadCounter(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.counters[name]
	if !ok {
		return 0, false
	}
	var sum uint64
	for _, c := range vec {
		sum += c.Read()
	}
	return sum, true
}

func (r *Registry) ReadGauge(name string) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.gauges[name]
	if !ok {
		return 0, false
	}
	var sum uint64
	for _, g := range vec {
		sum += g.Read()
	}
	return sum, true
}

func (r *Registry) ReadTiming(name string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.timings[name]
	if !ok {
		return 0, false
	}
	var sum time.Duration
	for _, t := range vec {
		sum += t.Read()
	}
	return sum, true
}

// ---------------- Iteration (publish path) ----------------

// iterateCounters drains every live counter and flushes the buffered
// values of closed ones. Same-named handles combine with sum.
func (r *Registry) iterateCounters(cb func(name string, v uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.counters {
		var v uint64
		for _, c := range vec {
			v += c.Drain()
		}
		cb(name, v)
	}
	for name, v := range r.deadCounters {
		cb(name, v)
		delete(r.deadCounters, name)
	}
}

func (r *Registry) iterateGauges(cb func(name string, v uint64)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.gauges {
		var v uint64
		for _, g := range vec {
			v += g.Drain()
		}
		cb(name, v)
	}
	for name, v := range r.deadGauges {
		cb(name, v)
		delete(r.deadGauges, name)
	}
}

func (r *Registry) iterateTimings(cb func(name string, v time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, vec := range r.timings {
		var v time.Duration
		for _, t := range vec {
			v += t.Drain()
		}
		cb(name, v)
	}
	for name, v := range r.deadTimings {
		cb(name, v)
		delete(r.deadTimings, name)
	}
}

// ---------------- Key views for the total check ----------------

func counterKeys(m map[string][]*Counter) func(string) bool {
	return func(k string) bool { _, ok := m[k]; return ok }
}

func gaugeKeys(m map[string][]*Gauge) func(string) bool {
	return func(k string) bool { _, ok := m[k]; return ok }
}

// checkTotalLocked aborts when a literal "x.total" would collide with
// the total generated for tagged "x#..." stats, or vice versa. Caller
// holds r.mu. exists answers membership for the map being added to;
// the tagged-name probe needs a prefix scan, so it walks the keys via
// the iterate helpers' underlying maps instead.
func (r *Registry) checkTotalLocked(name string, exists func(string) bool) {
	base, tag := splitTag(name)
	if tag == "" {
		if !strings.HasSuffix(base, ".total") {
			return
		}
		prefix := strings.TrimSuffix(base, ".total") + "#"
		if r.anyKeyWithPrefixLocked(prefix) {
			r.fatal("stats: %q duplicates the generated total for tagged stats", name)
		}
		return
	}
	if exists(base + ".total") {
		r.fatal("stats: %q duplicates the generated total for %q", base+".total", name)
	}
}

func (r *Registry) anyKeyWithPrefixLocked(prefix string) bool {
	for k := range r.counters {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	for k := range r.gauges {
		if strings.HasPrefix(k, prefix) {
			return true
		}
	}
	return false
}
