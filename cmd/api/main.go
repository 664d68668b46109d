// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "meal-plan-worker/docs"
	"meal-plan-worker/internal/config"
	"meal-plan-worker/internal/repository/postgresql"
	"meal-plan-worker/internal/service"
	httptransport "meal-plan-worker/internal/transport/http"
)

// @title meal-plan-worker API
// @version 1.0
// @description Enqueue and inspect meal-plan generation jobs.
// @BasePath /
func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	jobRepo := postgresql.NewJobRepository(pool)
	intakeRepo := postgresql.NewIntakeRepository(pool)
	planRepo := postgresql.NewPlanRepository(pool)

	queue := service.NewRedisQueue(rdb, service.QueueKeys{
		Queue:      cfg.QueueKey,
		Processing: cfg.ProcessingKey,
		Retry:      cfg.RetryKey,
		Attempts:   cfg.AttemptsKey,
		DeadLetter: cfg.DeadLetterKey,
	}, cfg.RetryBackoffBase)

	jobSvc := service.NewJobService(jobRepo, intakeRepo, queue)
	handler := httptransport.NewHandler(jobSvc, planRepo, queue)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("api started: addr=%s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http: %v", err)
	}
	log.Println("api stopped")
}
