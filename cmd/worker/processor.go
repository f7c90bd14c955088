package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/imrishuroy/go-storefront-cart/internal/aws"
	"github.com/imrishuroy/go-storefront-cart/internal/idempotency"
	"github.com/imrishuroy/go-storefront-cart/internal/orders"
)

// MetricOrdersCompleted is the CloudWatch metric emitted per completed order.
const MetricOrdersCompleted = "OrdersCompleted"

// Counter publishes a custom metric datapoint.
type Counter interface {
	Count(ctx context.Context, name string, value float64, dims map[string]string) error
}

// Processor handles order_placed messages and performs order lifecycle transitions.
type Processor struct {
	idempStore *idempotency.Store
	orderStore *orders.Store
	metrics    Counter
	logger     *slog.Logger
}

// ProcessorConfig names the tables and metric namespace the worker uses.
type ProcessorConfig struct {
	IdempotencyTable string
	OrdersTable      string
	IdempotencyTTL   time.Duration
	MetricsNamespace string
}

// NewProcessor creates a new worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		idempStore: idempotency.NewStore(clients.DynamoDB, cfg.IdempotencyTable, cfg.IdempotencyTTL),
		orderStore: orders.NewStore(clients.DynamoDB, cfg.OrdersTable),
		logger:     logger,
	}
	if clients.CloudWatch != nil {
		p.metrics = aws.NewMetricEmitter(clients.CloudWatch, cfg.MetricsNamespace)
	}
	return p
}

// Handle processes an SQS batch. Failed messages are reported individually so
// only they are redelivered (and eventually dead-lettered).
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("[worker] message failed", "message_id", rec.MessageId, "error", err)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: rec.MessageId,
			})
		}
	}
	return resp, nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg aws.OrderPlacedMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.OrderID == "" {
		return errors.New("message without order_id")
	}

	log := p.logger.With("order_id", msg.OrderID, "idempotency_key", msg.IdempotencyKey, "corr", msg.CorrelationID)
	log.Info("[worker] received order")

	order, err := p.orderStore.Get(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", msg.OrderID)
	}

	if err := p.orderStore.IncrementAttempts(ctx, msg.OrderID); err != nil {
		return err
	}

	// PENDING -> PROCESSING (idempotent)
	err = p.orderStore.UpdateStatus(ctx, msg.OrderID, orders.StatusPending, orders.StatusProcessing)
	if errors.Is(err, orders.ErrStatusMismatch) {
		current, gerr := p.orderStore.Get(ctx, msg.OrderID)
		if gerr != nil {
			return fmt.Errorf("re-read order after status mismatch: %w", gerr)
		}
		if current == nil {
			return fmt.Errorf("order disappeared: %s", msg.OrderID)
		}
		switch current.Status {
		case orders.StatusCompleted:
			log.Info("[worker] already completed")
			return nil
		case orders.StatusFailed:
			return fmt.Errorf("order=%s is already FAILED", msg.OrderID)
		case orders.StatusProcessing:
			// a previous delivery died between the two transitions; finish it
			log.Warn("[worker] resuming order left in PROCESSING")
		default:
			return fmt.Errorf("unexpected status for order=%s: %s", msg.OrderID, current.Status)
		}
	} else if err != nil {
		return fmt.Errorf("failed to update status to PROCESSING: %w", err)
	}

	log.Info("[worker] fulfilling order", "items", len(order.Items), "payment_method", order.PaymentMethod)

	// PROCESSING -> COMPLETED
	if err := p.orderStore.UpdateStatus(ctx, msg.OrderID, orders.StatusProcessing, orders.StatusCompleted); err != nil {
		return fmt.Errorf("failed to update status to COMPLETED: %w", err)
	}

	if msg.IdempotencyKey != "" {
		response := fmt.Sprintf(`{"order_id":%q,"status":%q}`, msg.OrderID, orders.StatusCompleted)
		if err := p.idempStore.MarkDone(ctx, msg.IdempotencyKey, response, 200); err != nil {
			return fmt.Errorf("failed to update idempotency: %w", err)
		}
	}

	if p.metrics != nil {
		if err := p.metrics.Count(ctx, MetricOrdersCompleted, 1, map[string]string{"PaymentMethod": order.PaymentMethod}); err != nil {
			log.Warn("[worker] metric not published", "error", err)
		}
	}

	log.Info("[worker] completed order")
	return nil
}
