// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"meal-plan-worker/internal/callback"
	"meal-plan-worker/internal/config"
	"meal-plan-worker/internal/llm"
	"meal-plan-worker/internal/nutrition"
	"meal-plan-worker/internal/pipeline"
	"meal-plan-worker/internal/plan"
	"meal-plan-worker/internal/recipe"
	"meal-plan-worker/internal/render"
	"meal-plan-worker/internal/repository/postgresql"
	"meal-plan-worker/internal/service"
	"meal-plan-worker/internal/storage"
	"meal-plan-worker/internal/worker"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Postgres
	pool, err := postgresql.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("pg: %v", err)
	}
	defer pool.Close()

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis: %v", err)
	}

	// External collaborators
	textGen, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("gemini: %v", err)
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}
	nutritionClient := nutrition.NewClient(cfg.NutritionAPIURL, cfg.NutritionAPIKey)

	// Shared renderer process
	rendererPool := render.NewPool(cfg.ChromeExecPath)
	defer rendererPool.Shutdown()

	spool, err := storage.NewSpool(cfg.ArtifactDir)
	if err != nil {
		log.Fatalf("artifact spool: %v", err)
	}

	// DI
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

	notifier := callback.NewClient(cfg.CallbackURL, cfg.CallbackSecret)

	curator := plan.NewCurator(recipe.NewGenerator(textGen, nutritionClient), cfg.CuisineMaxShare)
	qaLoop := pipeline.NewQALoop(curator, cfg.QAMaxAttempts, cfg.QAPassThreshold, cfg.QAExhaustedPolicy)
	runner := pipeline.NewRunner(intakeRepo, jobRepo, notifier, qaLoop, planRepo, spool, rendererPool)

	processor := worker.NewProcessor(jobRepo, runner, queue, notifier, cfg.MaxAttempts)
	poolWorkers := worker.NewPool(queue, processor, cfg.Workers)

	// Reaper: returns claimed-but-unacked jobs to the queue, and
	// promotes retry entries whose backoff elapsed.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := queue.RequeueStale(ctx, 100); err != nil {
					log.Printf("requeue error: %v", err)
				} else if n > 0 {
					log.Printf("requeued %d jobs from processing", n)
				}
				if n, err := queue.MoveDueRetries(ctx, 100); err != nil {
					log.Printf("retry pump error: %v", err)
				} else if n > 0 {
					log.Printf("promoted %d jobs from retry backoff", n)
				}
			}
		}
	}()

	log.Printf("worker started: workers=%d max_attempts=%d qa_attempts=%d qa_policy=%s",
		cfg.Workers, cfg.MaxAttempts, cfg.QAMaxAttempts, cfg.QAExhaustedPolicy)
	poolWorkers.Run(ctx)

	log.Println("worker stopped")
}
