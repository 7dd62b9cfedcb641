// Command server wires the full stack: journal replay, the table and
// its reclaimer, the outbox drain job, metrics publishing and the
// gRPC listener. Everything is constructed here and handed down.
// No globals. No magic.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"darr/api/grpcserver"
	"darr/api/wire"
	"darr/domain/table"
	"darr/infra/kafka"
	"darr/infra/memory"
	"darr/infra/outbox"
	"darr/infra/sequence"
	"darr/infra/wal"
	"darr/jobs/publisher"
	"darr/qsbr"
	"darr/service"
	"darr/stats"
)

func main() {
	var (
		dataDir      = flag.String("data", "./data", "base directory for journal and outbox")
		listenAddr   = flag.String("listen", ":9090", "gRPC listen address")
		brokers      = flag.String("brokers", "localhost:9092", "comma-separated Kafka brokers")
		topic        = flag.String("topic", "darr.changes", "Kafka topic for change events")
		statsTopic   = flag.String("stats-topic", "darr.stats", "Kafka topic for metrics lines")
		buckets      = flag.Int("buckets", 1024, "hash table buckets, power of two")
		collectEvery = flag.Duration("collect-every", 100*time.Millisecond, "reclamation pass period")
		publishEvery = flag.Duration("publish-every", time.Second, "outbox drain period")
		statsEvery   = flag.Duration("stats-every", 10*time.Second, "metrics flush period")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		log.Fatalf("[main] data dir: %v", err)
	}
	brokerList := strings.Split(*brokers, ",")

	// ── Core: pool, reclaimer, table ──

	pool := memory.NewPool(func() *table.Entry { return &table.Entry{} })
	rec := qsbr.New(pool)
	tbl := table.New(rec, pool, uint64(*buckets))

	// ── Durability: journal replay, then outbox ──

	walDir := filepath.Join(*dataDir, "journal")
	seq := sequence.New(0)
	if err := service.ReplayFromWAL(walDir, tbl, seq); err != nil {
		log.Fatalf("[main] replay: %v", err)
	}

	w, err := wal.Open(wal.Config{Dir: walDir, SegmentSize: 64 << 20})
	if err != nil {
		log.Fatalf("[main] open wal: %v", err)
	}
	defer w.Close()

	out, err := outbox.Open(filepath.Join(*dataDir, "outbox"))
	if err != nil {
		log.Fatalf("[main] open outbox: %v", err)
	}
	defer out.Close()

	// ── Observability ──

	reg := stats.NewRegistry()
	statsProducer := kafka.NewProducer(brokerList, *statsTopic)
	defer statsProducer.Close()
	statsPub := stats.StartPublishing(reg, kafka.NewStatsClient(statsProducer), *statsEvery)
	defer statsPub.Close()

	// ── Service and jobs ──

	svc := service.NewTableService(tbl, rec, w, out, seq, reg)
	defer svc.Close()

	pub, err := publisher.New(out, brokerList, *topic, *publishEvery)
	if err != nil {
		log.Fatalf("[main] kafka producer: %v", err)
	}
	defer pub.Close()
	pub.Start(ctx)

	// ── gRPC ──

	srv := grpcserver.New(svc)
	gs := grpc.NewServer(grpc.ForceServerCodec(wire.Codec{}))
	grpcserver.Register(gs, srv)

	lis, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		log.Fatalf("[main] listen: %v", err)
	}

	go func() {
		ticker := time.NewTicker(*collectEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.CollectNow()
			}
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("[main] shutting down")
		gs.GracefulStop()
	}()

	log.Printf("[main] serving on %s (seq resumed at %d)", *listenAddr, seq.Current())
	if err := gs.Serve(lis); err != nil {
		log.Fatalf("[main] serve: %v", err)
	}
	log.Println("[main] stopped")
}
