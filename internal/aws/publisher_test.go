package aws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

type mockSQS struct {
	mu   sync.Mutex
	err  error
	sent []*sqs.SendMessageInput
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestSendOrderPlaced(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/orders")

	err := p.SendOrderPlaced(context.Background(), OrderPlacedMessage{
		OrderID:        "o1",
		IdempotencyKey: "k1",
		SessionID:      "s1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mock.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(mock.sent))
	}
	in := mock.sent[0]
	if *in.QueueUrl != "https://sqs.local/orders" {
		t.Fatalf("queue url mismatch: %s", *in.QueueUrl)
	}

	var body OrderPlacedMessage
	if err := json.Unmarshal([]byte(*in.MessageBody), &body); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if body.OrderID != "o1" || body.IdempotencyKey != "k1" || body.SessionID != "s1" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if v := in.MessageAttributes["event_type"].StringValue; v == nil || *v != EventOrderPlaced {
		t.Fatalf("event_type attribute missing")
	}
	if _, ok := in.MessageAttributes["correlation_id"]; ok {
		t.Fatalf("empty correlation id must not be sent")
	}
}

func TestSendOrderMessage_Error(t *testing.T) {
	mock := &mockSQS{err: errors.New("throttled")}
	p := NewPublisher(mock, "q")

	err := p.SendOrderMessage(context.Background(), `{}`, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if mock.sent[0].MessageAttributes != nil {
		t.Fatalf("expected no attributes")
	}
}

func TestMetricEmitter_Count(t *testing.T) {
	cw := &mockCloudWatch{}
	m := NewMetricEmitter(cw, "Storefront")
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	m.nowFunc = func() time.Time { return fixed }

	if err := m.Count(context.Background(), "OrdersCompleted", 1, map[string]string{"Service": "worker"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cw.inputs) != 1 {
		t.Fatalf("expected one PutMetricData call")
	}
	in := cw.inputs[0]
	if *in.Namespace != "Storefront" {
		t.Fatalf("namespace mismatch: %s", *in.Namespace)
	}
	d := in.MetricData[0]
	if *d.MetricName != "OrdersCompleted" || *d.Value != 1 || !d.Timestamp.Equal(fixed) {
		t.Fatalf("unexpected datum: %+v", d)
	}
	if len(d.Dimensions) != 1 || *d.Dimensions[0].Name != "Service" {
		t.Fatalf("unexpected dimensions: %+v", d.Dimensions)
	}
}
