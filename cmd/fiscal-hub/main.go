package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/fiscal-hub/internal/api"
	"github.com/hypernova-labs/fiscal-hub/internal/artifacts"
	"github.com/hypernova-labs/fiscal-hub/internal/config"
	"github.com/hypernova-labs/fiscal-hub/internal/database"
	"github.com/hypernova-labs/fiscal-hub/internal/email"
	"github.com/hypernova-labs/fiscal-hub/internal/focus"
	"github.com/hypernova-labs/fiscal-hub/internal/lifecycle"
	"github.com/hypernova-labs/fiscal-hub/internal/webhooks"
	"github.com/hypernova-labs/fiscal-hub/internal/workflows"
	"github.com/sirupsen/logrus"
)

func main() {
	// Carregar configuração
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	// Configurar logging
	logger := setupLogger(cfg)
	logger.Info("Starting Fiscal Hub...")

	// Configurar modo do Gin
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Conectar ao banco de dados
	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	// Conectar ao Redis
	redis, err := database.ConnectRedis(cfg)
	if err != nil {
		logger.Warnf("Error connecting to Redis: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	// Repositórios
	docRepo := database.NewDocumentRepository(db, logger)
	webhookRepo := database.NewWebhookRepository(db, logger)

	// Cliente da Focus NFe
	focusClient := focus.NewClient(cfg, logger)

	// Espelho de artefatos em storage S3, opcional
	var mirror *artifacts.Mirror
	if cfg.Storage.MirrorEndpoint != "" && cfg.Storage.AccessKeyID != "" && cfg.Storage.SecretAccessKey != "" {
		mirror, err = artifacts.NewMirror(&cfg.Storage, logger)
		if err != nil {
			logger.Warnf("Error initializing storage mirror: %v", err)
			mirror = nil
		} else {
			if err := mirror.HealthCheck(); err != nil {
				logger.Warnf("Storage mirror health check failed: %v", err)
			} else {
				logger.Info("Storage mirror connection healthy")
			}
		}
	} else {
		logger.Warn("Storage mirror credentials not provided, artifacts will stay local only")
	}

	// Serviço de email via Resend, opcional
	var resendService *email.ResendService
	if cfg.Email.ResendAPIKey != "" {
		resendService = email.NewResendService(cfg.Email.ResendAPIKey, cfg.Email.From, cfg.Email.NotifyTo, logger)
		logger.Info("Resend service initialized successfully")
	} else {
		logger.Warn("Resend API key not provided, email notifications will not be available")
	}

	// Cliente do Inngest, opcional
	inngestClient, err := workflows.NewInngestClient(cfg, logger)
	if err != nil {
		logger.Warnf("Error initializing Inngest client: %v", err)
		inngestClient = nil
	}

	// Recuperador de artefatos
	storage := artifacts.NewLocalStorage(cfg.Storage.Path)
	retriever := artifacts.NewRetriever(focusClient, docRepo, storage, logger)
	if mirror != nil {
		retriever = retriever.WithMirror(mirror)
	}
	if resendService != nil {
		retriever = retriever.WithNotifier(resendService)
	}

	// Motor de ciclo de vida
	engine := lifecycle.NewEngine(docRepo, retriever, logger).
		WithCancelAfterAuthorized(cfg.Webhook.AllowCancelAfterAuthorized)

	// Pipeline de webhooks
	pipeline := webhooks.NewPipeline(webhookRepo, engine, logger, cfg.Webhook.Workers, cfg.Webhook.QueueSize)
	if inngestClient != nil {
		pipeline = pipeline.WithEventSink(inngestClient)
	}
	pipeline.Start()
	defer pipeline.Stop()

	// Inicializar API
	apiHandler := api.NewAPI(focusClient, docRepo, webhookRepo, pipeline, redis, inngestClient, logger)

	// Configurar router
	router := setupRouter(apiHandler, db, cfg)

	// Criar servidor HTTP
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Canal para sinais de término
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Iniciar servidor em goroutine
	go func() {
		logger.Infof("Server starting on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	// Esperar sinal de término
	<-quit
	logger.Info("Shutting down server...")

	// Contexto com timeout para shutdown graceful
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown graceful do servidor
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger configura o logger conforme a configuração
func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

// setupRouter configura o router principal
func setupRouter(apiHandler *api.API, db *database.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Middleware global
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Middleware de CORS para desenvolvimento
	if cfg.IsDevelopment() {
		router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Focus-Token")

			if c.Request.Method == "OPTIONS" {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
	}

	apiHandler.SetupRoutes(router, db)

	return router
}
