package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"mabacktester/internal/engine"
	"mabacktester/types"
)

const itemTypeBacktest = "BACKTEST"

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Item is a single row of the archive table.
type Item struct {
	PK        string    `dynamodbav:"pk"`
	SK        string    `dynamodbav:"sk"`
	Type      string    `dynamodbav:"type"`
	Data      string    `dynamodbav:"data"`
	CreatedAt time.Time `dynamodbav:"created_at"`
}

// Record is the archived summary of one run. Per-day values are not archived.
type Record struct {
	RunID             uuid.UUID     `json:"run_id"`
	Symbol            string        `json:"symbol"`
	Start             time.Time     `json:"start"`
	End               time.Time     `json:"end"`
	InitialInvestment float64       `json:"initial_investment"`
	FinalValue        float64       `json:"final_value"`
	TotalReturn       float64       `json:"total_return"`
	MaxDrawdown       float64       `json:"max_drawdown"`
	TotalTrades       int           `json:"total_trades"`
	Trades            []types.Trade `json:"trades"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Service stores backtest reports in a DynamoDB single table keyed by symbol.
type Service struct {
	client    dynamoAPI
	tableName string
	now       func() time.Time
}

// NewService creates a new DynamoDB archive using the default AWS credential chain.
func NewService(ctx context.Context, region, tableName string) (*Service, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newService(dynamodb.NewFromConfig(cfg), tableName), nil
}

func newService(client dynamoAPI, tableName string) *Service {
	return &Service{client: client, tableName: tableName, now: time.Now}
}

func partitionKey(symbol string) string {
	return "BACKTEST#" + strings.ToUpper(symbol)
}

// Save puts one item per run. Sort keys start with the UTC creation time so a query
// returns runs in chronological order.
func (s *Service) Save(ctx context.Context, report *engine.Report) error {
	created := s.now().UTC()
	record := Record{
		RunID:             report.RunID,
		Symbol:            report.Symbol,
		Start:             report.Start,
		End:               report.End,
		InitialInvestment: report.InitialInvestment,
		FinalValue:        report.FinalValue,
		TotalReturn:       report.TotalReturn,
		MaxDrawdown:       report.MaxDrawdown,
		TotalTrades:       report.TotalTrades,
		Trades:            report.Trades,
		CreatedAt:         created,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	item, err := attributevalue.MarshalMap(Item{
		PK:        partitionKey(report.Symbol),
		SK:        created.Format(time.RFC3339) + "#" + report.RunID.String(),
		Type:      itemTypeBacktest,
		Data:      string(data),
		CreatedAt: created,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// List returns the archived runs of symbol, newest first.
func (s *Service) List(ctx context.Context, symbol string) ([]Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": &dynamodbtypes.AttributeValueMemberS{Value: partitionKey(symbol)},
		},
		ScanIndexForward: aws.Bool(false),
	}

	var records []Record
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query table: %w", err)
		}
		for _, raw := range page.Items {
			var item Item
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal item: %w", err)
			}
			if item.Type != itemTypeBacktest {
				continue
			}
			var record Record
			if err := json.Unmarshal([]byte(item.Data), &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal record %s: %w", item.SK, err)
			}
			records = append(records, record)
		}
	}
	return records, nil
}
