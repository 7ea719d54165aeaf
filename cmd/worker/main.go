package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/callsim/callsim/internal/audit"
	"github.com/callsim/callsim/internal/cache"
	"github.com/callsim/callsim/internal/config"
	"github.com/callsim/callsim/internal/db"
	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/redisstore"
	"github.com/callsim/callsim/internal/session"
	"github.com/callsim/callsim/internal/store/rabbitmq"
	"github.com/callsim/callsim/internal/tts"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		logger.L.WithError(err).Fatal("database connect failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var kv cache.KV
	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rds.Healthy(ctx) {
		kv = rds
	} else {
		logger.L.Warn("redis unreachable, pre-rendered audio stays in process memory")
		kv = cache.NewMemory()
	}
	synth := tts.NewSynthesizer(cfg.TTSBaseURL, kv, cfg.TTSCacheTTL)

	sessionSvc := session.NewService(session.NewRepo(gdb), audit.NewLogger(gdb), nil, cfg.SessionCacheTTL)
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logger.L.WithError(err).Fatal("rabbit dial failed")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.L.WithError(err).Fatal("rabbit channel failed")
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(cfg.RabbitQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": cfg.RabbitQueue + ".dlq",
	}); err != nil {
		logger.L.WithError(err).Fatal("queue declare failed")
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		logger.L.WithError(err).Fatal("qos failed")
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.L.WithError(err).Fatal("consume failed")
	}

	logger.L.WithField("queue", cfg.RabbitQueue).
		WithField("concurrency", concurrency).
		Info("worker started")

	// Retention sweep: ended sessions past the retention window are purged
	// once at startup and then daily.
	go func() {
		sweep := func() {
			n, err := sessionSvc.PurgeEnded(ctx, retention)
			if err != nil {
				logger.L.WithError(err).Error("retention sweep failed")
				return
			}
			if n > 0 {
				logger.L.WithField("purged", n).Info("retention sweep done")
			}
		}
		sweep()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep()
			}
		}
	}()

	// worker pool
	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var job rabbitmq.TTSJob
				if err := json.Unmarshal(d.Body, &job); err != nil || job.Text == "" {
					logger.L.WithField("worker", workerID).WithError(err).Warn("bad message")
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if _, _, err := synth.Synthesize(ctx, job.Text, job.Lang); err != nil {
					logger.L.WithField("worker", workerID).
						WithField("cost", time.Since(start).String()).
						WithError(err).Warn("pre-render failed")
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					logger.L.WithField("worker", workerID).WithError(err).Warn("ack failed")
				}
			}
		}(i)
	}

	// dispatcher
	for {
		select {
		case <-ctx.Done():
			logger.L.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				logger.L.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}
