package orders

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// mockDynamo stores items per table in a nested map: table -> pkValue -> item map.
// It understands the condition and update expressions issued by the orders and
// idempotency stores.
const (
	ordersTable = "orders"
	idempTable  = "idempotency"
)

type mockDynamo struct {
	mu          sync.Mutex
	tables      map[string]map[string]map[string]types.AttributeValue
	transactErr error
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return m.tables[tbl]
}

// pkOf reads the partition key; the idempotency table is keyed by
// idempotency_key, everything else by order_id.
func pkOf(table string, attrs map[string]types.AttributeValue) (string, error) {
	name := "order_id"
	if table == idempTable {
		name = "idempotency_key"
	}
	v, ok := attrs[name].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("no primary key " + name)
	}
	return v.Value, nil
}

func conditionBlocks(cond *string, table map[string]map[string]types.AttributeValue, pk string) bool {
	if cond == nil {
		return false
	}
	if strings.HasPrefix(*cond, "attribute_not_exists(") {
		_, exists := table[pk]
		return exists
	}
	return false
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(*params.TableName, params.Item)
	if err != nil {
		return nil, err
	}
	if conditionBlocks(params.ConditionExpression, table, pk) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	table[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := table[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

var updatePlaceholders = map[string]string{
	":new":    "status",
	":done":   "status",
	":failed": "status",
	":rb":     "response_body",
	":rs":     "response_status",
	":ua":     "updated_at",
	":n":      "note",
	":oid":    "order_id",
	":exp":    "expires_at",
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.ensureTable(*params.TableName)
	pk, err := pkOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := table[pk]
	if !exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	vals := params.ExpressionAttributeValues
	if params.ConditionExpression != nil && *params.ConditionExpression == "#s = :expected" {
		curr, _ := item["status"].(*types.AttributeValueMemberS)
		expected := vals[":expected"].(*types.AttributeValueMemberS).Value
		if curr == nil || curr.Value != expected {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	for placeholder, attr := range updatePlaceholders {
		if v, ok := vals[placeholder]; ok {
			item[attr] = v
		}
	}
	if params.UpdateExpression != nil && strings.Contains(*params.UpdateExpression, "attempts") {
		n := 0
		if curr, ok := item["attempts"].(*types.AttributeValueMemberN); ok {
			n, _ = strconv.Atoi(curr.Value)
		}
		item["attempts"] = &types.AttributeValueMemberN{Value: strconv.Itoa(n + 1)}
	}
	table[pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transactErr != nil {
		return nil, m.transactErr
	}
	// First pass: verify condition expressions
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			table := m.ensureTable(*p.TableName)
			pk, err := pkOf(*p.TableName, p.Item)
			if err != nil {
				return nil, err
			}
			if conditionBlocks(p.ConditionExpression, table, pk) {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	// Second pass: apply all puts
	for _, it := range params.TransactItems {
		if p := it.Put; p != nil {
			pk, _ := pkOf(*p.TableName, p.Item)
			m.tables[*p.TableName][pk] = p.Item
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

type mockSQS struct {
	mu     sync.Mutex
	err    error
	sent   []*sqs.SendMessageInput
	onSend func(*sqs.SendMessageInput) // runs after a successful send
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, in)
	if m.err != nil {
		return nil, m.err
	}
	if m.onSend != nil {
		m.onSend(in)
	}
	return &sqs.SendMessageOutput{}, nil
}
