package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"review-hub-backend/config"
	"review-hub-backend/internal/bootstrap"
	"review-hub-backend/metrics"
	"review-hub-backend/middleware"
	"review-hub-backend/token"
	"review-hub-backend/utils"
	"review-hub-backend/websocket"

	// Repositories
	importRepositories "review-hub-backend/imports/repositories"
	integrationRepositories "review-hub-backend/integrations/repositories"
	reviewRepositories "review-hub-backend/reviews/repositories"

	// Services
	importServices "review-hub-backend/imports/services"

	// Routes
	importRoutes "review-hub-backend/imports/routes"
	integrationRoutes "review-hub-backend/integrations/routes"
	reviewRoutes "review-hub-backend/reviews/routes"

	// bleve
	bleveControllers "review-hub-backend/bleve/controllers"
	bleveRepositories "review-hub-backend/bleve/repositories"
	bleveRoutes "review-hub-backend/bleve/routes"
	bleveServices "review-hub-backend/bleve/services"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables before the logger reads LOG_LEVEL
	config.LoadEnv()
	config.InitLogger()
	defer config.Logger.Sync()

	ingestCfg := config.LoadIngestionConfig()

	app := fiber.New(fiber.Config{
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
		BodyLimit:   int(ingestCfg.MaxFileBytes) + 1<<20,
	})

	// Apply CORS middleware from middleware package
	middleware.InitCors(app)
	metrics.Register(app)

	// Initialize database and configs
	db := config.ConfigureDatabase()
	port := config.GetEnv("PORT", "8080")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := config.InitRedisServer(ctx)
	asynqRedisOpt := asynq.RedisClientOpt{
		Addr:     config.RedisAddress(),
		Password: config.GetEnv("REDIS_PASSWORD"),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	}

	asynqClient := asynq.NewClient(asynqRedisOpt)
	defer asynqClient.Close()

	tokenMaker, err := token.NewPasetoMaker(config.GetEnv("TOKEN_SYMMETRIC_KEY"))
	if err != nil {
		config.Logger.Fatal("Cannot create token maker", zap.Error(err))
	}
	appCtx := &middleware.AppContext{PasetoMaker: tokenMaker, Ctx: ctx, RedisClient: redisClient}

	indexPath := config.GetEnv("BLEVE_INDEX_PATH")
	if indexPath == "" {
		indexPath = "./bleve_data"
		config.Logger.Warn("BLEVE_INDEX_PATH not set, using default: ./bleve_data")
	}

	// Initialize the mailer. Reports are still written when SMTP is missing.
	utils.InitializeMailer()
	var sendMail importServices.MailFunc
	if utils.MailerConfigured() {
		sendMail = utils.SendEmail
	} else {
		config.Logger.Warn("SMTP not configured, error reports will not be mailed")
	}

	// ------ WebSocket Hub Initialization for import progress ------
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Serve generated error reports
	app.Static("/public", "./public")

	// Repositories
	bleveIndexingService := bleveServices.NewIndexingService(config.Logger, indexPath)
	defer bleveIndexingService.Close()
	bleveServiceRepo, bleveInterfaceRepo := bleveRepositories.NewBleveRepository(bleveIndexingService)

	integrationRepo := integrationRepositories.NewIntegrationRepository(db)
	importJobRepo := importRepositories.NewImportJobRepository(db)
	emailLogRepo := importRepositories.NewEmailLogRepository(db)
	reviewRepo := reviewRepositories.NewGuardedReviewRepository(
		reviewRepositories.NewReviewRepository(db),
		reviewRepositories.DefaultBreakerSettings(),
	)

	// Services
	enqueuer := importServices.NewAsynqEnqueuer(asynqClient, ingestCfg.JobTimeout)
	cancelSignal := importServices.NewRedisCancelSignal(redisClient, 24*time.Hour)
	publisher := importServices.NewHubPublisher(wsHub, ingestCfg.ProgressPushEvery)
	reporter := importServices.NewErrorReporter(importJobRepo, emailLogRepo, ingestCfg.ReportDir, sendMail)

	ingestionService := importServices.NewIngestionService(
		importJobRepo, integrationRepo, enqueuer, cancelSignal, publisher, reporter, ingestCfg,
	)
	processor := importServices.NewProcessor(importJobRepo, reviewRepo, integrationRepo, ingestCfg,
		importServices.WithCancelSignal(cancelSignal),
		importServices.WithPublisher(publisher),
		importServices.WithIndexer(bleveServiceRepo),
		importServices.WithFailureReporter(reporter),
	)

	// ------ Import worker pool ------
	worker := asynq.NewServer(asynqRedisOpt, asynq.Config{
		Concurrency: ingestCfg.WorkerConcurrency,
		Queues:      map[string]int{importServices.ImportQueue: 1},
		Logger:      config.Logger.Sugar(),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(importServices.TypeProcessImport, processor.ProcessTask)
	if err := worker.Start(mux); err != nil {
		config.Logger.Fatal("Failed to start import workers", zap.Error(err))
	}

	sweeper := importServices.NewSweeper(importJobRepo, enqueuer, publisher, ingestCfg)
	if err := sweeper.Start(); err != nil {
		config.Logger.Fatal("Failed to schedule import maintenance", zap.Error(err))
	}

	// Routes
	importRoutes.ImportRouterInit(app, appCtx, ingestionService)
	integrationRoutes.IntegrationRouterInit(app, appCtx, integrationRepo)
	reviewGroup := reviewRoutes.ReviewRouterInit(app, appCtx, reviewRepo)

	// Bleve Routes
	bleveController := bleveControllers.NewSearchController(bleveInterfaceRepo, reviewRepo)
	bleveRoutes.InitBleveRoutes(reviewGroup, bleveController)

	// ------ WebSocket Route for import progress ------
	wsHandler := websocket.NewWsHandler(wsHub, tokenMaker).WithJobSnapshot(importServices.JobSnapshot(importJobRepo))
	app.Get("/ws", wsHandler.HandleWebSocket)
	config.Logger.Info("WebSocket endpoint registered at /ws")

	// Re-index reviews in the background so startup is not blocked
	go func() {
		n, err := bootstrap.IndexBleveData(ctx, reviewRepo, bleveInterfaceRepo)
		if err != nil {
			config.Logger.Error("Review re-index failed", zap.Error(err))
			return
		}
		config.Logger.Info("Review index rebuilt", zap.Int("reviews", n))
	}()

	go func() {
		<-ctx.Done()
		config.Logger.Info("Shutting down")
		if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
			config.Logger.Error("HTTP shutdown failed", zap.Error(err))
		}
	}()

	// Start the application
	config.Logger.Info("Server starting", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		config.Logger.Error("Server failed", zap.String("port", port), zap.Error(err))
	}

	worker.Shutdown()
	sweeper.Stop()
}
