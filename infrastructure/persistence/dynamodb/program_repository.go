package dynamodb

import (
	"context"
	"sort"
	"strings"

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

// ProgramRepository reads the course catalog from DynamoDB. The
// catalog is written by the seed tool and treated as immutable at
// runtime.
type ProgramRepository struct {
	client    *awsdynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewProgramRepository creates a new ProgramRepository.
func NewProgramRepository(client *awsdynamodb.Client, tableName string, logger *zap.Logger) *ProgramRepository {
	return &ProgramRepository{client: client, tableName: tableName, logger: logger}
}

type programItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	Code       string `dynamodbav:"Code"`
	Name       string `dynamodbav:"Name"`
}

type courseItem struct {
	PK                string   `dynamodbav:"PK"`
	SK                string   `dynamodbav:"SK"`
	EntityType        string   `dynamodbav:"EntityType"`
	Code              string   `dynamodbav:"Code"`
	Name              string   `dynamodbav:"Name"`
	CreditHours       int      `dynamodbav:"CreditHours"`
	PrerequisiteHours int      `dynamodbav:"PrerequisiteHours"`
	Prerequisites     []string `dynamodbav:"Prerequisites,omitempty"`
}

// GetByCode retrieves a program with its full required-course list.
func (r *ProgramRepository) GetByCode(ctx context.Context, code string) (*entities.Program, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(programPK(code)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("get program", err)
	}

	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get program", err)
	}
	if len(out.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("program")
	}
	return unmarshalProgram(out.Items)
}

// List retrieves every program. The catalog is small, a scan over the
// PROGRAM# partition prefix is fine here.
func (r *ProgramRepository) List(ctx context.Context) ([]*entities.Program, error) {
	filt := expression.Name("PK").BeginsWith(pkProgramPrefix)
	expr, err := expression.NewBuilder().WithFilter(filt).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("list programs", err)
	}

	byProgram := make(map[string][]map[string]types.AttributeValue)
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Scan(ctx, &awsdynamodb.ScanInput{
			TableName:                 aws.String(r.tableName),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, pkgerrors.NewStoreError("list programs", err)
		}
		for _, item := range out.Items {
			pk := stringAttr(item, "PK")
			byProgram[pk] = append(byProgram[pk], item)
		}
		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}

	programs := make([]*entities.Program, 0, len(byProgram))
	for _, items := range byProgram {
		p, err := unmarshalProgram(items)
		if err != nil {
			return nil, err
		}
		programs = append(programs, p)
	}
	sort.Slice(programs, func(i, j int) bool { return programs[i].Code < programs[j].Code })
	return programs, nil
}

// Save writes a program and its courses, used by the seed tool.
func (r *ProgramRepository) Save(ctx context.Context, p *entities.Program) error {
	tx := newTx("save program")
	meta, err := attributevalue.MarshalMap(programItem{
		PK:         programPK(p.Code),
		SK:         skMeta,
		EntityType: "Program",
		Code:       p.Code,
		Name:       p.Name,
	})
	if err != nil {
		return pkgerrors.NewStoreError("save program", err)
	}
	tx.put(&types.Put{TableName: aws.String(r.tableName), Item: meta})

	for _, c := range p.Required {
		prereqs := make([]string, 0, len(c.Prerequisites))
		for _, code := range c.Prerequisites {
			prereqs = append(prereqs, code.String())
		}
		item, err := attributevalue.MarshalMap(courseItem{
			PK:                programPK(p.Code),
			SK:                courseSK(c.Code.String()),
			EntityType:        "Course",
			Code:              c.Code.String(),
			Name:              c.Name,
			CreditHours:       c.CreditHours,
			PrerequisiteHours: c.PrerequisiteHours,
			Prerequisites:     prereqs,
		})
		if err != nil {
			return pkgerrors.NewStoreError("save program", err)
		}
		tx.put(&types.Put{TableName: aws.String(r.tableName), Item: item})
	}

	r.logger.Info("saving program",
		zap.String("program", p.Code),
		zap.Int("courses", len(p.Required)))
	return tx.execute(ctx, r.client)
}

func unmarshalProgram(items []map[string]types.AttributeValue) (*entities.Program, error) {
	p := &entities.Program{}
	for _, item := range items {
		sk := stringAttr(item, "SK")
		switch {
		case sk == skMeta:
			var pi programItem
			if err := attributevalue.UnmarshalMap(item, &pi); err != nil {
				return nil, pkgerrors.NewStoreError("unmarshal program", err)
			}
			p.Code = pi.Code
			p.Name = pi.Name
		case strings.HasPrefix(sk, skCoursePrefix):
			var ci courseItem
			if err := attributevalue.UnmarshalMap(item, &ci); err != nil {
				return nil, pkgerrors.NewStoreError("unmarshal program", err)
			}
			course := &entities.CourseCatalogEntry{
				Code:              valueobjects.CourseCode(ci.Code),
				Name:              ci.Name,
				CreditHours:       ci.CreditHours,
				PrerequisiteHours: ci.PrerequisiteHours,
			}
			for _, code := range ci.Prerequisites {
				course.Prerequisites = append(course.Prerequisites, valueobjects.CourseCode(code))
			}
			p.Required = append(p.Required, course)
		}
	}
	sort.Slice(p.Required, func(i, j int) bool { return p.Required[i].Code < p.Required[j].Code })
	return p, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
