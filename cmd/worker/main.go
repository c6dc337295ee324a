package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusevents/internal/config"
	"campusevents/internal/metrics"
	"campusevents/internal/push"
	"campusevents/internal/queue"
	"campusevents/internal/store"
)

// Worker consumes queued notifications and dispatches them to student
// devices through the push gateway. Delivery is best effort: a failed
// token is counted and skipped, never retried.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "campusevents:notifications")
	}

	pusher := push.New(cfg.PushGatewayURL, cfg.PushSkip)
	if cfg.PushSkip {
		log.Println("push dispatch disabled (PUSH_SKIP=true), messages will be consumed and dropped")
	}

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+cfg.HTTPPort, nil); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for notifications...")
	for msg := range messages {
		if msg.Type != "notify" {
			continue
		}

		var n push.Notification
		if err := json.Unmarshal(msg.Body, &n); err != nil {
			log.Printf("bad notification payload: %v", err)
			continue
		}

		results := pusher.Send(ctx, n)
		sent, failed := 0, 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				metrics.PushFailed.Inc()
				log.Printf("push to %s failed: %v", res.Token, res.Err)
				continue
			}
			sent++
			metrics.PushSent.Inc()
		}
		log.Printf("notification %q dispatched: %d sent, %d failed", n.Title, sent, failed)

		time.Sleep(10 * time.Millisecond)
	}

	log.Println("worker stopped")
}
