package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/imrishuroy/go-storefront-cart/internal/aws"
	"github.com/imrishuroy/go-storefront-cart/internal/config"
	"github.com/imrishuroy/go-storefront-cart/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Base().Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Init(logging.Options{
		Service:  "storefront-worker",
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

	p := NewProcessor(clients, ProcessorConfig{
		IdempotencyTable: cfg.AWS.IdempotencyTable,
		OrdersTable:      cfg.AWS.OrdersTable,
		IdempotencyTTL:   cfg.AWS.IdempotencyTTL,
		MetricsNamespace: cfg.AWS.MetricsNamespace,
	}, logger)

	// If RUN_LOCAL=true, simulate a single SQS event for local testing.
	if cfg.App.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			testBody = `{"order_id":"local-order-1","idempotency_key":"local-key-1"}`
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{MessageId: "local-1", Body: testBody},
			},
		}
		resp, _ := p.Handle(context.Background(), event)
		if len(resp.BatchItemFailures) > 0 {
			logger.Error("local handler error", "failures", len(resp.BatchItemFailures))
			os.Exit(1)
		}
		return
	}

	lambda.Start(p.Handle)
}
