package dynamodb

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/utils"
)

// CourseMapRepository persists course maps in DynamoDB. A map lives in
// one partition: META, one CONT# item per course, one SEM# item per
// semester. Scheduling deltas land as a single TransactWriteItems
// guarded by the Version attribute on META; the (user, name)
// uniqueness rides a guard item on the user partition.
type CourseMapRepository struct {
	client    *awsdynamodb.Client
	tableName string
	userIndex string
	programs  ports.ProgramRepository
	logger    *zap.Logger
}

// NewCourseMapRepository creates a new CourseMapRepository.
func NewCourseMapRepository(client *awsdynamodb.Client, tableName, userIndex string, programs ports.ProgramRepository, logger *zap.Logger) *CourseMapRepository {
	return &CourseMapRepository{
		client:    client,
		tableName: tableName,
		userIndex: userIndex,
		programs:  programs,
		logger:    logger,
	}
}

type mapMetaItem struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	GSI2PK      string `dynamodbav:"GSI2PK"`
	GSI2SK      string `dynamodbav:"GSI2SK"`
	EntityType  string `dynamodbav:"EntityType"`
	MapID       string `dynamodbav:"MapID"`
	UserID      string `dynamodbav:"UserID"`
	Name        string `dynamodbav:"Name"`
	ProgramCode string `dynamodbav:"ProgramCode"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	Version     int    `dynamodbav:"Version"`
}

type containmentItem struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	EntityType      string `dynamodbav:"EntityType"`
	CourseCode      string `dynamodbav:"CourseCode"`
	Taken           bool   `dynamodbav:"Taken"`
	Outdegree       int    `dynamodbav:"Outdegree"`
	LastPrereqOrder int    `dynamodbav:"LastPrereqOrder"`
	TakenIn         string `dynamodbav:"TakenIn,omitempty"`
}

type semesterItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	SemesterID string `dynamodbav:"SemesterID"`
	Season     string `dynamodbav:"Season"`
	Year       int    `dynamodbav:"Year"`
	Order      int    `dynamodbav:"Order"`
}

type mapNameGuardItem struct {
	PK    string `dynamodbav:"PK"`
	SK    string `dynamodbav:"SK"`
	MapID string `dynamodbav:"MapID"`
}

// Create persists a new map with its seeded containments, failing on a
// duplicate (user, name) pair.
func (r *CourseMapRepository) Create(ctx context.Context, m *aggregates.CourseMap) error {
	tx := newTx("create course map")

	guard, err := attributevalue.MarshalMap(mapNameGuardItem{
		PK:    userPK(m.UserID()),
		SK:    mapNameSK(m.Name()),
		MapID: m.ID().String(),
	})
	if err != nil {
		return pkgerrors.NewStoreError("create course map", err)
	}
	tx.putGuard(&types.Put{
		TableName:           aws.String(r.tableName),
		Item:                guard,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}, "a course map with this name already exists")

	meta, err := attributevalue.MarshalMap(mapMetaItem{
		PK:          mapPK(m.ID().String()),
		SK:          skMeta,
		GSI2PK:      userIndexPK(m.UserID()),
		GSI2SK:      mapPK(m.ID().String()),
		EntityType:  "CourseMap",
		MapID:       m.ID().String(),
		UserID:      m.UserID(),
		Name:        m.Name(),
		ProgramCode: m.ProgramCode(),
		CreatedAt:   m.CreatedAt().Format(time.RFC3339),
		Version:     m.Version(),
	})
	if err != nil {
		return pkgerrors.NewStoreError("create course map", err)
	}
	tx.put(&types.Put{TableName: aws.String(r.tableName), Item: meta})

	for _, c := range m.Containments() {
		item, err := r.marshalContainment(m.ID(), c)
		if err != nil {
			return err
		}
		tx.put(&types.Put{TableName: aws.String(r.tableName), Item: item})
	}

	r.logger.Info("creating course map",
		zap.String("mapID", m.ID().String()),
		zap.String("userID", m.UserID()),
		zap.Int("courses", len(m.Containments())))
	return tx.execute(ctx, r.client)
}

// GetByID retrieves a fully hydrated map, catalog included.
func (r *CourseMapRepository) GetByID(ctx context.Context, id valueobjects.CourseMapID) (*aggregates.CourseMap, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(mapPK(id.String())))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("get course map", err)
	}

	var items []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewStoreError("get course map", err)
		}
		items = append(items, out.Items...)
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	if len(items) == 0 {
		return nil, pkgerrors.NewNotFoundError("course map")
	}
	return r.assemble(ctx, items)
}

// GetByUserID retrieves all maps owned by a user via the user index.
func (r *CourseMapRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.CourseMap, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(userIndexPK(userID))).
		And(expression.Key("GSI2SK").BeginsWith(pkMapPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("list course maps", err)
	}

	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.userIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("list course maps", err)
	}

	maps := make([]*aggregates.CourseMap, 0, len(out.Items))
	for _, item := range out.Items {
		var meta mapMetaItem
		if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
			return nil, pkgerrors.NewStoreError("list course maps", err)
		}
		id, err := valueobjects.NewCourseMapIDFromString(meta.MapID)
		if err != nil {
			return nil, pkgerrors.NewStoreError("list course maps", err)
		}
		m, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// AddSemester appends a semester, bumping the map version.
func (r *CourseMapRepository) AddSemester(ctx context.Context, mapID valueobjects.CourseMapID, sem *entities.Semester, expectedVersion int) error {
	tx := newTx("add semester")
	if err := r.addVersionBump(tx, mapID, expectedVersion, expectedVersion+1); err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(semesterItem{
		PK:         mapPK(mapID.String()),
		SK:         semesterSK(sem.Order),
		EntityType: "Semester",
		SemesterID: sem.ID.String(),
		Season:     string(sem.Season),
		Year:       sem.Year,
		Order:      sem.Order,
	})
	if err != nil {
		return pkgerrors.NewStoreError("add semester", err)
	}
	tx.put(&types.Put{TableName: aws.String(r.tableName), Item: item})
	return tx.execute(ctx, r.client)
}

// ApplyScheduling persists a schedule or unschedule delta atomically.
func (r *CourseMapRepository) ApplyScheduling(ctx context.Context, change *aggregates.SchedulingChange) error {
	tx := newTx("apply scheduling")
	if err := r.addVersionBump(tx, change.MapID, change.ExpectedVersion, change.NewVersion); err != nil {
		return err
	}

	for _, c := range change.Containments {
		item, err := r.marshalContainment(change.MapID, c)
		if err != nil {
			return err
		}
		tx.put(&types.Put{TableName: aws.String(r.tableName), Item: item})
	}
	return tx.execute(ctx, r.client)
}

// Delete removes a map's whole partition and its name guard.
func (r *CourseMapRepository) Delete(ctx context.Context, id valueobjects.CourseMapID) error {
	keyCond := expression.Key("PK").Equal(expression.Value(mapPK(id.String())))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return pkgerrors.NewStoreError("delete course map", err)
	}

	var userID, name string
	var keys []map[string]types.AttributeValue
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return pkgerrors.NewStoreError("delete course map", err)
		}
		for _, item := range out.Items {
			if stringAttr(item, "SK") == skMeta {
				userID = stringAttr(item, "UserID")
				name = stringAttr(item, "Name")
			}
			keys = append(keys, map[string]types.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			})
		}
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	if len(keys) == 0 {
		return pkgerrors.NewNotFoundError("course map")
	}

	if userID != "" {
		guardKey, err := attributevalue.MarshalMap(map[string]string{
			"PK": userPK(userID),
			"SK": mapNameSK(name),
		})
		if err != nil {
			return pkgerrors.NewStoreError("delete course map", err)
		}
		keys = append(keys, guardKey)
	}
	return r.batchDelete(ctx, keys)
}

func (r *CourseMapRepository) batchDelete(ctx context.Context, keys []map[string]types.AttributeValue) error {
	// BatchWriteItem caps at 25 writes per call.
	for start := 0; start < len(keys); start += 25 {
		end := start + 25
		if end > len(keys) {
			end = len(keys)
		}
		writes := make([]types.WriteRequest, 0, end-start)
		for _, key := range keys[start:end] {
			writes = append(writes, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: key},
			})
		}
		pendingWrites := map[string][]types.WriteRequest{r.tableName: writes}
		for len(pendingWrites) > 0 {
			out, err := r.client.BatchWriteItem(ctx, &awsdynamodb.BatchWriteItemInput{
				RequestItems: pendingWrites,
			})
			if err != nil {
				return pkgerrors.NewStoreError("delete course map", err)
			}
			pendingWrites = out.UnprocessedItems
		}
	}
	return nil
}

// addVersionBump appends the conditional version update on META.
func (r *CourseMapRepository) addVersionBump(tx *txBuilder, mapID valueobjects.CourseMapID, expected, next int) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": mapPK(mapID.String()),
		"SK": skMeta,
	})
	if err != nil {
		return pkgerrors.NewStoreError(tx.operation, err)
	}
	update := expression.Set(expression.Name("Version"), expression.Value(next))
	cond := expression.Name("Version").Equal(expression.Value(expected))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
	if err != nil {
		return pkgerrors.NewStoreError(tx.operation, err)
	}
	tx.update(&types.Update{
		TableName:                 aws.String(r.tableName),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return nil
}

func (r *CourseMapRepository) marshalContainment(mapID valueobjects.CourseMapID, c *entities.Containment) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(containmentItem{
		PK:              mapPK(mapID.String()),
		SK:              containmentSK(c.CourseCode.String()),
		EntityType:      "Containment",
		CourseCode:      c.CourseCode.String(),
		Taken:           c.Taken,
		Outdegree:       c.Outdegree,
		LastPrereqOrder: c.LastPrereqSemesterOrder,
		TakenIn:         c.TakenIn.String(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("marshal containment", err)
	}
	return item, nil
}

// assemble rebuilds the aggregate from one partition's items plus the
// program catalog.
func (r *CourseMapRepository) assemble(ctx context.Context, items []map[string]types.AttributeValue) (*aggregates.CourseMap, error) {
	var meta mapMetaItem
	var conts []*entities.Containment
	var sems []*entities.Semester

	for _, item := range items {
		sk := stringAttr(item, "SK")
		switch {
		case sk == skMeta:
			if err := attributevalue.UnmarshalMap(item, &meta); err != nil {
				return nil, pkgerrors.NewStoreError("assemble course map", err)
			}
		case strings.HasPrefix(sk, skContPrefix):
			var ci containmentItem
			if err := attributevalue.UnmarshalMap(item, &ci); err != nil {
				return nil, pkgerrors.NewStoreError("assemble course map", err)
			}
			cont := &entities.Containment{
				CourseCode:              valueobjects.CourseCode(ci.CourseCode),
				Taken:                   ci.Taken,
				Outdegree:               ci.Outdegree,
				LastPrereqSemesterOrder: ci.LastPrereqOrder,
			}
			if ci.TakenIn != "" {
				takenIn, err := valueobjects.NewSemesterIDFromString(ci.TakenIn)
				if err != nil {
					return nil, pkgerrors.NewStoreError("assemble course map", err)
				}
				cont.TakenIn = takenIn
			}
			conts = append(conts, cont)
		case strings.HasPrefix(sk, skSemPrefix):
			var si semesterItem
			if err := attributevalue.UnmarshalMap(item, &si); err != nil {
				return nil, pkgerrors.NewStoreError("assemble course map", err)
			}
			semID, err := valueobjects.NewSemesterIDFromString(si.SemesterID)
			if err != nil {
				return nil, pkgerrors.NewStoreError("assemble course map", err)
			}
			season, err := valueobjects.ParseSeason(si.Season)
			if err != nil {
				return nil, pkgerrors.NewStoreError("assemble course map", err)
			}
			sems = append(sems, &entities.Semester{ID: semID, Season: season, Year: si.Year, Order: si.Order})
		}
	}

	if meta.MapID == "" {
		return nil, pkgerrors.NewNotFoundError("course map")
	}
	id, err := valueobjects.NewCourseMapIDFromString(meta.MapID)
	if err != nil {
		return nil, pkgerrors.NewStoreError("assemble course map", err)
	}
	program, err := r.programs.GetByCode(ctx, meta.ProgramCode)
	if err != nil {
		return nil, err
	}

	return aggregates.ReconstructCourseMap(
		id, meta.UserID, meta.Name, meta.ProgramCode,
		program.Required, conts, sems,
		utils.ParseRFC3339(meta.CreatedAt), meta.Version,
	), nil
}
