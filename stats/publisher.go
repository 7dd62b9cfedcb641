package stats

import "time"

// Client receives drained stat values. tag is "" for untagged stats.
// Implementations must tolerate being called from the publisher
// goroutine.
type Client interface {
	Count(name string, value uint64, tag string)
	Gauge(name string, value uint64, tag string)
	Timing(name string, value time.Duration)
}

// Publisher drains the registry to a client on a fixed period.
//
//	pub := stats.StartPublishing(reg, client, 10*time.Second)
//	defer pub.Close()
type Publisher struct {
	reg    *Registry
	client Client
	period time.Duration
	stop   chan struct{}
	done   chan struct{}
}

func StartPublishing(reg *Registry, client Client, period time.Duration) *Publisher {
	p := &Publisher{
		reg:    reg,
		client: client,
		period: period,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Publisher) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			p.emit() // final flush
			return
		case <-ticker.C:
			p.emit()
		}
	}
}

// emit pushes one round of drained values. Tagged stats also roll up
// into "<base>.total" so dashboards can sum across tag values without
// knowing them.
func (p *Publisher) emit() {
	totals := make(map[string]uint64)
	p.reg.iterateCounters(func(name string, v uint64) {
		base, tag := splitTag(name)
		if tag == "" {
			p.client.Count(name, v, "")
			return
		}
		totals[base+".total"] += v
		p.client.Count(base, v, tag)
	})
	for name, v := range totals {
		p.client.Count(name, v, "")
	}

	clear(totals)
	p.reg.iterateGauges(func(name string, v uint64) {
		base, tag := splitTag(name)
		if tag == "" {
			p.client.Gauge(name, v, "")
			return
		}
		totals[base+".total"] += v
		p.client.Gauge(base, v, tag)
	})
	for name, v := range totals {
		p.client.Gauge(name, v, "")
	}

	p.reg.iterateTimings(func(name string, v time.Duration) {
		p.client.Timing(name, v)
	})
}

// Close stops the loop after one final flush.
func (p *Publisher) Close() {
	close(p.stop)
	<-p.done
}
