package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petrelay/petrelay/internal/ai"
	"github.com/petrelay/petrelay/internal/api"
	"github.com/petrelay/petrelay/internal/config"
	"github.com/petrelay/petrelay/internal/db"
	"github.com/petrelay/petrelay/internal/middleware"
	"github.com/petrelay/petrelay/internal/observ"
	"github.com/petrelay/petrelay/internal/queue"
	"github.com/petrelay/petrelay/internal/repository/postgres"
	"github.com/petrelay/petrelay/internal/wa"
	"github.com/petrelay/petrelay/internal/worker"
	"github.com/petrelay/petrelay/internal/ws"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config and create the logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Root context cancels on SIGINT/SIGTERM; the worker pool and the HTTP
	// server both drain off it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 2. Connect to Postgres and Redis
	//
	// Startup uses the root context: "take as long as you need to
	// connect." Per-request deadlines come later.
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	queues, err := queue.NewManager(ctx, cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer queues.Close()

	// ---------------------------------------------------------------
	// 3. Create repositories
	//
	// Every store shares the same pool (it's goroutine-safe). No hidden
	// singletons anywhere: everything is constructed here once and
	// passed down.
	// ---------------------------------------------------------------
	pool := database.Pool()
	orgRepo := postgres.NewOrganizationStore(pool)
	userRepo := postgres.NewUserStore(pool)
	ownerRepo := postgres.NewOwnerNumberStore(pool)
	contactRepo := postgres.NewContactStore(pool)
	petRepo := postgres.NewPetStore(pool)
	conversationRepo := postgres.NewConversationStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	// ---------------------------------------------------------------
	// 4. Personas, outbound sender, live feed, message processor
	// ---------------------------------------------------------------
	llm := ai.NewClient(ai.ClientConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, logger)
	aurora := ai.NewAurora(llm, contactRepo, conversationRepo, messageRepo, logger)
	concierge := ai.NewConcierge(llm, logger)
	sender := wa.NewGatewaySender(cfg.WAGatewayURL, cfg.WAGatewayToken, logger)
	hub := ws.NewHub(logger)

	processor := worker.NewProcessor(
		orgRepo,
		ownerRepo,
		contactRepo,
		conversationRepo,
		messageRepo,
		aurora,
		concierge,
		sender,
		hub,
		logger,
	)

	messageWorker := queue.NewWorker(queues, queue.WorkerConfig{
		Queue:       queue.QueueMessages,
		Concurrency: cfg.MessageConcurrency,
		RatePerSec:  cfg.MessageRatePerSec,
	}, processor.Handle, logger)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		messageWorker.Run(ctx)
	}()

	// ---------------------------------------------------------------
	// 5. HTTP server
	// ---------------------------------------------------------------
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	authHandler := api.NewAuthHandler(userRepo, orgRepo, cfg.JWTSecret, logger)
	orgHandler := api.NewOrganizationHandler(orgRepo, logger)
	ownerHandler := api.NewOwnerNumberHandler(ownerRepo, logger)
	contactHandler := api.NewContactHandler(contactRepo, logger)
	petHandler := api.NewPetHandler(petRepo, contactRepo, logger)
	conversationHandler := api.NewConversationHandler(conversationRepo, messageRepo, logger)
	webhookHandler := api.NewWebhookHandler(queues, cfg.MessageAttempts, cfg.WAGatewayToken, logger)
	adminHandler := api.NewAdminHandler(queues, cfg.MessageAttempts, logger)
	streamHandler := api.NewStreamHandler(hub, logger)

	// Health is public; load balancers can't carry a JWT.
	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public: auth and the gateway webhook (gateway-token gated inside).
	srv.POST("/v1/auth/signup", authHandler.Signup)
	srv.POST("/v1/auth/login", authHandler.Login)
	srv.POST("/v1/webhooks/inbound", webhookHandler.Inbound)

	// Everything else under /v1 requires a valid JWT.
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	{
		v1.GET("/organization", orgHandler.Get)
		v1.PATCH("/organization/settings", orgHandler.UpdateSettings)

		v1.POST("/owner-numbers", ownerHandler.Register)
		v1.GET("/owner-numbers", ownerHandler.List)
		v1.DELETE("/owner-numbers/:id", ownerHandler.Deactivate)

		v1.POST("/contacts", contactHandler.Create)
		v1.GET("/contacts", contactHandler.List)
		v1.GET("/contacts/:id", contactHandler.GetByID)
		v1.POST("/contacts/:id/pets", petHandler.Create)
		v1.GET("/contacts/:id/pets", petHandler.ListByContact)
		v1.DELETE("/pets/:id", petHandler.Deactivate)

		v1.GET("/conversations", conversationHandler.List)
		v1.GET("/conversations/:id/messages", conversationHandler.ListMessages)

		v1.GET("/stream", streamHandler.Connect)
	}

	// Queue admin: JWT + organization membership + authorized owner number.
	admin := srv.Group("/admin/queues")
	admin.Use(middleware.AuthMiddleware(cfg.JWTSecret), middleware.OwnerGate(userRepo, ownerRepo))
	{
		admin.GET("", adminHandler.Counts)
		admin.GET("/dead-letter", adminHandler.DeadLetters)
		admin.POST("/dead-letter/:id/retry", adminHandler.RetryDeadLetter)
	}

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	logger.Info("starting PetRelay",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.Int("message_concurrency", cfg.MessageConcurrency),
		zap.Int("message_rate_per_sec", cfg.MessageRatePerSec),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	// ---------------------------------------------------------------
	// 6. Graceful shutdown: stop accepting requests, let in-flight jobs
	//    finish, then close the pools (deferred above).
	// ---------------------------------------------------------------
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-workerDone

	return nil
}
