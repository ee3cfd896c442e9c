package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// TimeslotRepository reads the timeslot inventory from DynamoDB.
type TimeslotRepository struct {
	client     *awsdynamodb.Client
	tableName  string
	offerIndex string
	logger     *zap.Logger
}

// NewTimeslotRepository creates a new TimeslotRepository.
func NewTimeslotRepository(client *awsdynamodb.Client, tableName, offerIndex string, logger *zap.Logger) *TimeslotRepository {
	return &TimeslotRepository{client: client, tableName: tableName, offerIndex: offerIndex, logger: logger}
}

type timeslotItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK"`
	GSI1SK     string `dynamodbav:"GSI1SK"`
	EntityType string `dynamodbav:"EntityType"`
	TimeslotID string `dynamodbav:"TimeslotID"`
	CourseCode string `dynamodbav:"CourseCode"`
	Group      string `dynamodbav:"Group"`
	Day        string `dynamodbav:"Day"`
	StartsAt   string `dynamodbav:"StartsAt"`
	EndsAt     string `dynamodbav:"EndsAt"`
}

// GetByID retrieves one timeslot.
func (r *TimeslotRepository) GetByID(ctx context.Context, id valueobjects.TimeslotID) (*entities.Timeslot, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": timeslotPK(id.String()),
		"SK": skMeta,
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get timeslot", err)
	}
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get timeslot", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("timeslot")
	}
	return unmarshalTimeslot(out.Item)
}

// GetByIDs retrieves several timeslots via BatchGetItem; a missing id
// is not found.
func (r *TimeslotRepository) GetByIDs(ctx context.Context, ids []valueobjects.TimeslotID) ([]*entities.Timeslot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	seen := make(map[valueobjects.TimeslotID]struct{}, len(ids))
	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		key, err := attributevalue.MarshalMap(map[string]string{
			"PK": timeslotPK(id.String()),
			"SK": skMeta,
		})
		if err != nil {
			return nil, pkgerrors.NewStoreError("get timeslots", err)
		}
		keys = append(keys, key)
	}

	found := make(map[valueobjects.TimeslotID]*entities.Timeslot, len(keys))
	request := map[string]types.KeysAndAttributes{
		r.tableName: {Keys: keys},
	}
	for len(request) > 0 {
		out, err := r.client.BatchGetItem(ctx, &awsdynamodb.BatchGetItemInput{
			RequestItems: request,
		})
		if err != nil {
			return nil, pkgerrors.NewStoreError("get timeslots", err)
		}
		for _, item := range out.Responses[r.tableName] {
			ts, err := unmarshalTimeslot(item)
			if err != nil {
				return nil, err
			}
			found[ts.ID] = ts
		}
		request = out.UnprocessedKeys
	}

	out := make([]*entities.Timeslot, 0, len(ids))
	for _, id := range ids {
		ts, ok := found[id]
		if !ok {
			return nil, pkgerrors.NewNotFoundError("timeslot")
		}
		out = append(out, ts)
	}
	return out, nil
}

// ListByCourse retrieves the timeslots of one course from the offer
// index.
func (r *TimeslotRepository) ListByCourse(ctx context.Context, code valueobjects.CourseCode) ([]*entities.Timeslot, error) {
	keyCond := expression.Key("GSI1PK").Equal(expression.Value(courseIndexPK(code.String())))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("list timeslots", err)
	}

	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.offerIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("list timeslots", err)
	}

	slots := make([]*entities.Timeslot, 0, len(out.Items))
	for _, item := range out.Items {
		ts, err := unmarshalTimeslot(item)
		if err != nil {
			return nil, err
		}
		slots = append(slots, ts)
	}
	return slots, nil
}

// Save writes one timeslot, used by the seed tool.
func (r *TimeslotRepository) Save(ctx context.Context, ts *entities.Timeslot) error {
	item, err := attributevalue.MarshalMap(timeslotItem{
		PK:         timeslotPK(ts.ID.String()),
		SK:         skMeta,
		GSI1PK:     courseIndexPK(ts.CourseCode.String()),
		GSI1SK:     timeslotPK(ts.ID.String()),
		EntityType: "Timeslot",
		TimeslotID: ts.ID.String(),
		CourseCode: ts.CourseCode.String(),
		Group:      ts.Group,
		Day:        ts.Day,
		StartsAt:   ts.StartsAt,
		EndsAt:     ts.EndsAt,
	})
	if err != nil {
		return pkgerrors.NewStoreError("save timeslot", err)
	}
	_, err = r.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return pkgerrors.NewStoreError("save timeslot", err)
	}
	r.logger.Debug("timeslot saved", zap.String("timeslotID", ts.ID.String()))
	return nil
}

func unmarshalTimeslot(item map[string]types.AttributeValue) (*entities.Timeslot, error) {
	var ti timeslotItem
	if err := attributevalue.UnmarshalMap(item, &ti); err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal timeslot", err)
	}
	return &entities.Timeslot{
		ID:         valueobjects.TimeslotID(ti.TimeslotID),
		CourseCode: valueobjects.CourseCode(ti.CourseCode),
		Group:      ti.Group,
		Day:        ti.Day,
		StartsAt:   ti.StartsAt,
		EndsAt:     ti.EndsAt,
	}, nil
}
