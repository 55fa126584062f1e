package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/johnwmail/npaste/config"
	"github.com/johnwmail/npaste/handlers"
	"github.com/johnwmail/npaste/internal/events"
	applog "github.com/johnwmail/npaste/internal/log"
	"github.com/johnwmail/npaste/internal/metrics"
	"github.com/johnwmail/npaste/internal/middleware"
	"github.com/johnwmail/npaste/internal/services"
	"github.com/johnwmail/npaste/models"
	"github.com/johnwmail/npaste/storage"
	"github.com/johnwmail/npaste/utils"
	"go.uber.org/zap"

	// Lambda imports (only used when in Lambda mode)
	lambdaevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
)

// Version/build info (set via -ldflags at build time)
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "none"
)

const shutdownTimeout = 30 * time.Second

// Lambda-specific variables
var (
	ginLambdaV1   *ginadapter.GinLambda
	ginLambdaV2   *ginadapter.GinLambdaV2
	ginLambdaOnce sync.Once
	lambdaLogger  = zap.NewNop()
)

// isLambdaEnvironment detects if running in AWS Lambda
func isLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

func main() {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	cfg.Version = Version
	cfg.BuildTime = BuildTime
	cfg.CommitHash = CommitHash

	logger := applog.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting npaste",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", CommitHash))

	if utils.IsDebugEnabled() {
		logger.Info("loaded config", zap.Any("config", cfg))
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	if len(cfg.AdminKeys) > 0 {
		logger.Info("admin endpoints require an API key", zap.Int("keys", len(cfg.AdminKeys)))
	} else if cfg.AdminOpen {
		logger.Warn("admin endpoints are open without authentication")
	} else {
		logger.Info("admin endpoints disabled; set NPASTE_ADMIN_KEYS to enable")
	}
	if cfg.TestMode {
		logger.Warn("test mode enabled; x-test-now-ms overrides the clock")
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
	store, err := storage.NewStore(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("storage_type", cfg.StorageType), zap.Error(err))
	}

	publisher := newPublisher(cfg, logger)
	svc := services.NewPasteService(store, cfg, publisher, logger)
	router := setupRouter(svc, cfg, logger)

	if isLambdaEnvironment() {
		logger.Info("starting in AWS Lambda mode")
		lambdaLogger = logger
		ginLambdaOnce.Do(func() {
			ginLambdaV1 = ginadapter.New(router)
			ginLambdaV2 = ginadapter.NewV2(router)
		})
		lambda.Start(lambdaHandler)
		return
	}

	logger.Info("starting in HTTP server mode")
	janitor := services.NewJanitor(store, publisher, cfg.CleanupInterval, logger)
	runHTTPServer(router, cfg, store, publisher, janitor, logger)
}

// newPublisher connects to RabbitMQ when configured. Events are optional,
// so a failed dial only disables them.
func newPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if cfg.AMQPURI == "" {
		return events.Noop{}
	}
	pub, err := events.NewRabbitMQPublisher(cfg.AMQPURI, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ; paste events disabled", zap.Error(err))
		return events.Noop{}
	}
	logger.Info("publishing paste events", zap.String("exchange", events.Exchange))
	return pub
}

// lambdaHandler handles Lambda requests for both v1 and v2 formats
func lambdaHandler(ctx context.Context, event interface{}) (interface{}, error) {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		lambdaLogger.Error("failed to marshal lambda event", zap.Error(err))
		return lambdaevents.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       "Failed to process event",
			Headers:    map[string]string{"Content-Type": "text/plain"},
		}, err
	}

	// Function URLs and HTTP APIs send v2 payloads
	var reqV2 lambdaevents.APIGatewayV2HTTPRequest
	if err := json.Unmarshal(eventBytes, &reqV2); err == nil && reqV2.RequestContext.HTTP.Method != "" {
		lambdaLogger.Debug("handling v2 event",
			zap.String("method", reqV2.RequestContext.HTTP.Method),
			zap.String("path", reqV2.RawPath))
		return ginLambdaV2.ProxyWithContext(ctx, reqV2)
	}

	// REST APIs and ALB send v1 payloads
	var reqV1 lambdaevents.APIGatewayProxyRequest
	if err := json.Unmarshal(eventBytes, &reqV1); err == nil && reqV1.HTTPMethod != "" {
		lambdaLogger.Debug("handling v1 event",
			zap.String("method", reqV1.HTTPMethod),
			zap.String("path", reqV1.Path))
		return ginLambdaV1.ProxyWithContext(ctx, reqV1)
	}

	lambdaLogger.Warn("unsupported lambda event", zap.String("type", fmt.Sprintf("%T", event)))
	return lambdaevents.APIGatewayV2HTTPResponse{
		StatusCode: http.StatusBadRequest,
		Body:       "Unsupported event type - this function expects API Gateway or Lambda Function URL events",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}, fmt.Errorf("unsupported event type: %T", event)
}

// setupRouter creates and configures the Gin router. Every API route is
// served both at the root and under /api.
func setupRouter(svc *services.PasteService, cfg *config.Config, logger *zap.Logger) *gin.Engine {
	pasteHandler := handlers.NewPasteHandler(svc, logger)
	viewHandler := handlers.NewViewHandler(svc, logger)
	systemHandler := handlers.NewSystemHandler(svc)
	adminAuth := middleware.AdminAuth(cfg.AdminKeys, cfg.AdminOpen)

	router := gin.New()
	router.Use(
		middleware.Recovery(logger),
		middleware.RequestLogger(logger),
		middleware.Metrics(),
		middleware.CORS(cfg.CORSOrigins),
		middleware.RequestClock(cfg.TestMode),
		middleware.BodyLimit(cfg.MaxContentSize),
	)

	for _, group := range []*gin.RouterGroup{&router.RouterGroup, router.Group("/api")} {
		group.GET("/healthz", systemHandler.Health)
		group.POST("/create-paste", pasteHandler.Create)
		group.GET("/get-paste/:id", pasteHandler.Get)
		group.GET("/view-paste/:id", viewHandler.View)
		group.GET("/get-all-pastes", adminAuth, pasteHandler.List)
		group.DELETE("/delete-paste/:id", adminAuth, pasteHandler.Delete)
	}
	router.GET("/p/:id", viewHandler.View)

	if cfg.EnableMetrics {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.APIResponse{
			Status:  models.StatusFailure,
			Message: "Resource not found",
		})
	})

	return router
}

// runHTTPServer starts the HTTP server and the expiry janitor, then blocks
// until SIGINT or SIGTERM
func runHTTPServer(router *gin.Engine, cfg *config.Config, store storage.PasteStore, publisher events.Publisher, janitor *services.Janitor, logger *zap.Logger) {
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("error closing event publisher", zap.Error(err))
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing storage", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(ctx)
	}()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting npaste server", zap.Int("port", cfg.Port), zap.String("url", cfg.URL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		logger.Error("failed to start server", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	} else {
		logger.Info("server shutdown complete")
	}
	wg.Wait()
}
