package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hamed0406/apihealth/internal/domain"
	"github.com/hamed0406/apihealth/internal/repo"
)

var _ repo.EndpointSource = (*Store)(nil)
var _ repo.StateStore = (*Store)(nil)

// API is the part of *dynamodb.Client the store needs.
type API interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store reads endpoint configs from one table and keeps records in another.
// Both tables are keyed by the string attribute api_id.
type Store struct {
	api         API
	configTable string
	stateTable  string
}

func New(api API, configTable, stateTable string) *Store {
	return &Store{api: api, configTable: configTable, stateTable: stateTable}
}

func (s *Store) ListEndpoints(ctx context.Context) ([]domain.EndpointSpec, error) {
	var out []domain.EndpointSpec
	p := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:      aws.String(s.configTable),
		ConsistentRead: aws.Bool(true),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.configTable, err)
		}
		var rows []repo.EndpointRow
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, fmt.Errorf("decode %s items: %w", s.configTable, err)
		}
		for _, r := range rows {
			out = append(out, r.Spec())
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, endpointID string) (*domain.HealthRecord, error) {
	res, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.stateTable),
		Key:            key(endpointID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", endpointID, err)
	}
	if len(res.Item) == 0 {
		return nil, nil
	}
	var row repo.StateRow
	if err := attributevalue.UnmarshalMap(res.Item, &row); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", endpointID, err)
	}
	return row.Record()
}

func (s *Store) Put(ctx context.Context, rec *domain.HealthRecord) error {
	item, err := attributevalue.MarshalMap(repo.NewStateRow(rec))
	if err != nil {
		return fmt.Errorf("encode state %s: %w", rec.EndpointID, err)
	}
	if _, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.stateTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put state %s: %w", rec.EndpointID, err)
	}
	return nil
}

func key(endpointID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"api_id": &types.AttributeValueMemberS{Value: endpointID},
	}
}
