// Package publisher implements a background job that periodically
// scans the outbox for unacknowledged change events and publishes
// them to Kafka.
package publisher

import (
	"context"
	"encoding/binary"
	"log"
	"time"

	"github.com/IBM/sarama"

	"darr/infra/codec"
	"darr/infra/outbox"
)

type Publisher struct {
	out      *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

func New(
	out *outbox.Outbox,
	brokers []string,
	topic string,
	interval time.Duration,
) (*Publisher, error) {

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Publisher{
		out:      out,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// Start launches the drain loop. It stops when ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	log.Println("[publisher] started")

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.drainOnce()
			}
		}
	}()
}

// drainOnce replays every pending event. Marking SENT before the
// publish and ACKED after keeps delivery at-least-once: a crash
// between the two resends on the next pass.
func (p *Publisher) drainOnce() {
	_ = p.out.ScanPending(func(rec *codec.Record) error {
		if err := p.out.MarkSent(rec.Seq); err != nil {
			return nil // raced with a concurrent ack; skip
		}

		var key [8]byte
		binary.BigEndian.PutUint64(key[:], rec.Seq)
		msg := &sarama.ProducerMessage{
			Topic: p.topic,
			Key:   sarama.ByteEncoder(key[:]),
			Value: sarama.ByteEncoder(codec.Encode(rec)),
		}
		if _, _, err := p.producer.SendMessage(msg); err != nil {
			return nil // retry on the next tick
		}

		return p.out.MarkAcked(rec.Seq)
	})
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
