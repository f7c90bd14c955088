package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/imrishuroy/go-storefront-cart/internal/aws"
	"github.com/imrishuroy/go-storefront-cart/internal/catalog"
	"github.com/imrishuroy/go-storefront-cart/internal/checkout"
	"github.com/imrishuroy/go-storefront-cart/internal/config"
	"github.com/imrishuroy/go-storefront-cart/internal/handlers"
	"github.com/imrishuroy/go-storefront-cart/internal/idempotency"
	"github.com/imrishuroy/go-storefront-cart/internal/logging"
	"github.com/imrishuroy/go-storefront-cart/internal/orders"
	"github.com/imrishuroy/go-storefront-cart/internal/session"
	"github.com/imrishuroy/go-storefront-cart/internal/validation"
)

func setupRouter(logger *slog.Logger, cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger), handlers.Metrics())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterStorefrontRoutes(r, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Options{
		Service:  "storefront-api",
		FilePath: cfg.Log.File,
		Level:    cfg.Log.Level,
	})

	clients, err := aws.NewAWSClients(context.Background(), aws.Settings{
		Region:           cfg.AWS.Region,
		EndpointOverride: cfg.AWS.EndpointOverride,
	})
	if err != nil {
		logger.Error("failed to init aws clients", "error", err)
		os.Exit(1)
	}

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL,
		catalog.WithHTTPClient(&http.Client{Timeout: cfg.Catalog.Timeout}),
		catalog.WithRateLimit(cfg.Catalog.RatePerSecond, cfg.Catalog.Burst),
	)

	submitter := orders.NewSubmitter(
		orders.NewStore(clients.DynamoDB, cfg.AWS.OrdersTable),
		idempotency.NewStore(clients.DynamoDB, cfg.AWS.IdempotencyTable, cfg.AWS.IdempotencyTTL),
		aws.NewPublisher(clients.SQS, cfg.AWS.OrdersQueueURL),
		logging.New("orders"),
	)

	r := setupRouter(logger, handlers.HandlerConfig{
		Catalog:     catalogClient,
		Sessions:    session.NewRegistry(catalogClient, logging.New("reconcile")),
		Checkout:    checkout.NewCoordinator(validation.New(), submitter, logging.New("checkout")),
		ShippingFee: cfg.ShippingFee(),
		ViewTimeout: cfg.App.CartViewTimeout,
	})

	if cfg.App.RunLocal {
		logger.Info("running local server", "addr", cfg.App.HTTPAddr)
		if err := r.Run(cfg.App.HTTPAddr); err != nil {
			logger.Error("failed to run local server", "error", err)
			os.Exit(1)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
