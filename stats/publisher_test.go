package stats

import (
	"sync"
	"testing"
	"time"
)

type fakeClient struct {
	mu      sync.Mutex
	counts  map[string]uint64
	tags    map[string]string
	gauges  map[string]uint64
	timings map[string]time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		counts:  make(map[string]uint64),
		tags:    make(map[string]string),
		gauges:  make(map[string]uint64),
		timings: make(map[string]time.Duration),
	}
}

func (f *fakeClient) Count(name string, v uint64, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[name] += v
	if tag != "" {
		f.tags[name] = tag
	}
}

func (f *fakeClient) Gauge(name string, v uint64, tag string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[name] += v
}

func (f *fakeClient) Timing(name string, v time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timings[name] += v
}

func TestPublisherEmitsAndRollsUp(t *testing.T) {
	r, _ := testRegistry(t)
	client := newFakeClient()

	f1 := r.NewCounter("requests#req_type:f1")
	r1 := r.NewCounter("requests#req_type:r1")
	plain := r.NewCounter("rejects")
	tm := r.NewTiming("collect_time")
	defer f1.Close()
	defer r1.Close()
	defer plain.Close()
	defer tm.Close()

	f1.Add(2)
	r1.Add(3)
	plain.Inc()
	tm.Add(7 * time.Millisecond)

	p := &Publisher{reg: r, client: client}
	p.emit()

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.counts["requests"] != 5 {
		t.Fatalf("tagged counters: got %d, want 5", client.counts["requests"])
	}
	if client.counts["requests.total"] != 5 {
		t.Fatalf("rolled-up total: got %d, want 5", client.counts["requests.total"])
	}
	if client.counts["rejects"] != 1 {
		t.Fatalf("plain counter: got %d, want 1", client.counts["rejects"])
	}
	if client.tags["requests"] == "" {
		t.Fatal("tag not forwarded for tagged counter")
	}
	if client.timings["collect_time"] != 7*time.Millisecond {
		t.Fatalf("timing: got %v", client.timings["collect_time"])
	}
}

func TestPublisherFinalFlushOnClose(t *testing.T) {
	r, _ := testRegistry(t)
	client := newFakeClient()

	c := r.NewCounter("late")
	defer c.Close()

	p := StartPublishing(r, client, time.Hour) // ticker never fires
	c.Add(9)
	p.Close()

	client.mu.Lock()
	defer client.mu.Unlock()
	if client.counts["late"] != 9 {
		t.Fatalf("final flush lost data: got %d, want 9", client.counts["late"])
	}
}
