package kafka

import (
	"context"
	"fmt"
	"log"
	"time"
)

// StatsClient adapts the producer to the stats publish interface.
// Lines use the dogstatsd-ish "name:value|type|#tag" shape so any
// consumer on the metrics topic can split them without a schema.
type StatsClient struct {
	producer *Producer
	timeout  time.Duration
}

func NewStatsClient(producer *Producer) *StatsClient {
	return &StatsClient{producer: producer, timeout: 2 * time.Second}
}

func (c *StatsClient) Count(name string, value uint64, tag string) {
	c.send(formatLine(name, value, "c", tag))
}

func (c *StatsClient) Gauge(name string, value uint64, tag string) {
	c.send(formatLine(name, value, "g", tag))
}

func (c *StatsClient) Timing(name string, value time.Duration) {
	// millisecond precision only
	c.send(formatLine(name, uint64(value.Milliseconds()), "ms", ""))
}

func (c *StatsClient) send(line string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.producer.Send(ctx, nil, []byte(line)); err != nil {
		// Metrics are best-effort; dropping a flush beats blocking
		// the publisher loop.
		log.Printf("[stats] kafka send failed: %v", err)
	}
}

func formatLine(name string, value uint64, kind, tag string) string {
	if tag == "" {
		return fmt.Sprintf("%s:%d|%s", name, value, kind)
	}
	return fmt.Sprintf("%s:%d|%s|#%s", name, value, kind, tag)
}
