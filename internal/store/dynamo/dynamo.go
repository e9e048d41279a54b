// Package dynamo implements store.Store on DynamoDB. Conditional writes give
// create-only backup records and ADD update expressions give atomic counters.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amekkawi/arq-console/internal/models"
	"github.com/amekkawi/arq-console/internal/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// API is the subset of the DynamoDB client used by Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

type Config struct {
	Region      string
	Endpoint    string
	ClientTable string
	BackupTable string
	MetricTable string
}

type Store struct {
	api         API
	clientTable string
	backupTable string
	metricTable string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewWithAPI(client, cfg), nil
}

func NewWithAPI(api API, cfg Config) *Store {
	return &Store{
		api:         api,
		clientTable: cfg.ClientTable,
		backupTable: cfg.BackupTable,
		metricTable: cfg.MetricTable,
	}
}

func (s *Store) GetClient(ctx context.Context, clientID string, attributes []string) (*models.ClientRecord, error) {
	input := &dynamodb.GetItemInput{
		TableName: aws.String(s.clientTable),
		Key: map[string]types.AttributeValue{
			store.AttrClientID: &types.AttributeValueMemberS{Value: clientID},
		},
	}
	if len(attributes) > 0 {
		names := make(map[string]string, len(attributes))
		placeholders := make([]string, 0, len(attributes))
		for i, attr := range attributes {
			if !store.KnownClientAttribute(attr) {
				return nil, fmt.Errorf("unknown client attribute %q", attr)
			}
			p := "#a" + strconv.Itoa(i)
			names[p] = attr
			placeholders = append(placeholders, p)
		}
		input.ProjectionExpression = aws.String(strings.Join(placeholders, ", "))
		input.ExpressionAttributeNames = names
	}

	out, err := s.api.GetItem(ctx, input)
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, store.ErrNotFound
	}

	client := &models.ClientRecord{}
	if err := attributevalue.UnmarshalMap(out.Item, client); err != nil {
		return nil, fmt.Errorf("unmarshal client %s: %w", clientID, err)
	}
	return client, nil
}

type backupItem struct {
	ClientID      string   `dynamodbav:"clientId"`
	BackupID      string   `dynamodbav:"backupId"`
	BackupType    string   `dynamodbav:"backupType"`
	DeliveryType  string   `dynamodbav:"deliveryType"`
	BackupDate    string   `dynamodbav:"backupDate"`
	DurationMS    int64    `dynamodbav:"duration"`
	TotalItems    int64    `dynamodbav:"totalItems"`
	TotalBytes    int64    `dynamodbav:"totalBytes"`
	ErrorCount    int64    `dynamodbav:"errorCount"`
	ErrorMessages []string `dynamodbav:"errorMessages,omitempty"`
	CreatedDate   string   `dynamodbav:"createdDate"`
}

func (s *Store) AddBackupResult(ctx context.Context, meta models.BackupResultMeta, metrics models.BackupResultMetrics) error {
	item, err := attributevalue.MarshalMap(backupItem{
		ClientID:      meta.ClientID,
		BackupID:      meta.BackupID,
		BackupType:    meta.BackupType,
		DeliveryType:  meta.DeliveryType,
		BackupDate:    metrics.BackupDate.UTC().Format(time.RFC3339),
		DurationMS:    metrics.Duration.Milliseconds(),
		TotalItems:    metrics.TotalItems,
		TotalBytes:    metrics.TotalBytes,
		ErrorCount:    metrics.ErrorCount,
		ErrorMessages: metrics.ErrorMessages,
		CreatedDate:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal backup %s: %w", meta.BackupID, err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.backupTable),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(backupId)"),
	})
	return mapConditionErr(err)
}

func (s *Store) AddClientTotals(ctx context.Context, clientID string, delta models.ClientTotals) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.clientTable),
		Key: map[string]types.AttributeValue{
			store.AttrClientID: &types.AttributeValueMemberS{Value: clientID},
		},
		UpdateExpression:    aws.String("ADD backupCount :bc, totalBytes :tb, totalItems :ti, errorCount :ec"),
		ConditionExpression: aws.String("attribute_exists(clientId)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":bc": number(delta.BackupCount),
			":tb": number(delta.TotalBytes),
			":ti": number(delta.TotalItems),
			":ec": number(delta.ErrorCount),
		},
	})
	return mapConditionErr(err)
}

// Counter fields in the order they are written.
var metricFields = []string{"count", "bytes", "items", "errors"}

// AddClientMetric issues one UpdateItem whose ADD clauses target attributes
// named "{period}-{field}", e.g. "12-bytes".
func (s *Store) AddClientMetric(ctx context.Context, inc models.MetricIncrement) error {
	expr, names, values := buildMetricUpdate(inc.Periods)
	if expr == "" {
		return nil
	}
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.metricTable),
		Key: map[string]types.AttributeValue{
			"clientId": &types.AttributeValueMemberS{Value: inc.ClientID},
			"metricId": &types.AttributeValueMemberS{Value: inc.MetricID},
		},
		UpdateExpression:          aws.String(expr),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	return err
}

func buildMetricUpdate(periods map[int]models.Counters) (string, map[string]string, map[string]types.AttributeValue) {
	keys := make([]int, 0, len(periods))
	for p := range periods {
		keys = append(keys, p)
	}
	sort.Ints(keys)

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	var clauses []string
	for _, period := range keys {
		fields := periods[period].Fields()
		for _, field := range metricFields {
			v, ok := fields[field]
			if !ok {
				continue
			}
			i := strconv.Itoa(len(clauses))
			names["#n"+i] = strconv.Itoa(period) + "-" + field
			values[":v"+i] = number(v)
			clauses = append(clauses, "#n"+i+" :v"+i)
		}
	}
	if len(clauses) == 0 {
		return "", nil, nil
	}
	return "ADD " + strings.Join(clauses, ", "), names, values
}

func number(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

func mapConditionErr(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return store.ErrConditionFailed
	}
	return err
}
