package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
	config "github.com/stick95/fanpost/configs"
	"github.com/stick95/fanpost/internal/api/handlers"
	"github.com/stick95/fanpost/internal/api/middleware"
	"github.com/stick95/fanpost/internal/blob"
	job "github.com/stick95/fanpost/internal/jobs"
	"github.com/stick95/fanpost/internal/platform"
	"github.com/stick95/fanpost/internal/queue"
	"github.com/stick95/fanpost/internal/repository"
	"github.com/stick95/fanpost/internal/service"
	"github.com/stick95/fanpost/internal/token"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRequestRepo := repository.NewPostRequestRepository(db)
	destinationTaskRepo := repository.NewDestinationTaskRepository(db)
	taskLogRepo := repository.NewTaskLogRepository(db)
	scheduledPostRepo := repository.NewScheduledPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)

	store, err := blob.NewR2Store(*cfg)
	if err != nil {
		log.Fatalf("Failed to initialize blob store: %v", err)
	}

	tokens := token.NewStoreProvider(*cfg, socialAccountRepo)
	registry := platform.NewRegistry(
		platform.NewTiktokAdapter(tokens),
		platform.NewInstagramAdapter(tokens),
		platform.NewYoutubeAdapter(tokens),
	)

	enqueuer := queue.NewAsynqEnqueuer(client, cfg.Delivery.TaskTimeout)

	intakeService := service.NewIntakeService(db, *cfg, postRequestRepo, destinationTaskRepo, taskLogRepo, socialAccountRepo, store, enqueuer)
	postService := service.NewPostService(postRequestRepo, destinationTaskRepo, taskLogRepo, enqueuer)
	scheduleService := service.NewScheduleService(*cfg, scheduledPostRepo, destinationTaskRepo, intakeService)
	accountService := service.NewAccountService(socialAccountRepo)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(intakeService, postService)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Get("/posts/:id/logs", post.GetLogs)
	api.Post("/posts/:id/resubmit", post.ResubmitDestination)

	schedule := handlers.NewScheduleHandler(scheduleService)
	api.Post("/schedules", schedule.CreateSchedule)
	api.Get("/schedules", schedule.ListSchedules)
	api.Post("/schedules/:id/cancel", schedule.CancelSchedule)

	account := handlers.NewAccountHandler(accountService)
	api.Get("/accounts", account.ListAccounts)
	api.Post("/accounts/remove", account.RemoveAccount)

	// cron jobs
	sweepJob := job.NewSchedulerSweepJob(scheduledPostRepo, intakeService)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, tokens)

	c := cron.New()
	c.AddFunc(cfg.Scheduling.SweepInterval, sweepJob.Sweep)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	// queue worker
	worker := queue.NewWorker(cfg.Delivery, postRequestRepo, destinationTaskRepo, taskLogRepo, registry, store, enqueuer)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.Delivery.Concurrency,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypeDeliverPost, worker.HandleDeliverTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
