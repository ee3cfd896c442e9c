package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"swapcourses-backend/domain/core/aggregates"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/utils"
)

// SwapRequestRepository persists swap requests and their match edges in
// DynamoDB. Each request owns a partition holding META plus one MATCH#
// item per edge; edges are mirrored onto both endpoints' partitions so
// either side reaches its matches with a single query. Candidate lookup
// rides the offer index; the one-request-per-offered-slot rule rides a
// guard item on the user partition.
type SwapRequestRepository struct {
	client     *awsdynamodb.Client
	tableName  string
	offerIndex string
	userIndex  string
	logger     *zap.Logger
}

// NewSwapRequestRepository creates a new SwapRequestRepository.
func NewSwapRequestRepository(client *awsdynamodb.Client, tableName, offerIndex, userIndex string, logger *zap.Logger) *SwapRequestRepository {
	return &SwapRequestRepository{
		client:     client,
		tableName:  tableName,
		offerIndex: offerIndex,
		userIndex:  userIndex,
		logger:     logger,
	}
}

type requestItem struct {
	PK         string   `dynamodbav:"PK"`
	SK         string   `dynamodbav:"SK"`
	GSI1PK     string   `dynamodbav:"GSI1PK"`
	GSI1SK     string   `dynamodbav:"GSI1SK"`
	GSI2PK     string   `dynamodbav:"GSI2PK"`
	GSI2SK     string   `dynamodbav:"GSI2SK"`
	EntityType string   `dynamodbav:"EntityType"`
	RequestID  string   `dynamodbav:"RequestID"`
	UserID     string   `dynamodbav:"UserID"`
	UserEmail  string   `dynamodbav:"UserEmail"`
	Status     string   `dynamodbav:"Status"`
	Offered    string   `dynamodbav:"Offered"`
	Wanted     []string `dynamodbav:"Wanted"`
	CreatedAt  string   `dynamodbav:"CreatedAt"`
	UpdatedAt  string   `dynamodbav:"UpdatedAt"`
	Version    int      `dynamodbav:"Version"`
}

type matchItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	MatchA     string `dynamodbav:"MatchA"`
	MatchB     string `dynamodbav:"MatchB"`
	Status     string `dynamodbav:"Status"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
}

var errMissingFromCluster = errors.New("updated request missing from cluster")

type offerGuardItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	RequestID string `dynamodbav:"RequestID"`
}

// Create persists a new pending request with its offer guard.
func (r *SwapRequestRepository) Create(ctx context.Context, req *entities.SwapRequest) error {
	tx := newTx("create swap request")

	guard, err := attributevalue.MarshalMap(offerGuardItem{
		PK:        userPK(req.UserID()),
		SK:        offerGuardSK(req.Offered().String()),
		RequestID: req.ID().String(),
	})
	if err != nil {
		return pkgerrors.NewStoreError("create swap request", err)
	}
	tx.putGuard(&types.Put{
		TableName:           aws.String(r.tableName),
		Item:                guard,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	}, "a swap request for this timeslot already exists")

	meta, err := marshalRequest(req)
	if err != nil {
		return err
	}
	tx.put(&types.Put{TableName: aws.String(r.tableName), Item: meta})

	r.logger.Info("creating swap request",
		zap.String("requestID", req.ID().String()),
		zap.String("userID", req.UserID()))
	return tx.execute(ctx, r.client)
}

// GetByID retrieves one request.
func (r *SwapRequestRepository) GetByID(ctx context.Context, id valueobjects.SwapRequestID) (*entities.SwapRequest, error) {
	item, err := r.getMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	return unmarshalRequest(item)
}

// ListByUser retrieves a user's requests with their edges.
func (r *SwapRequestRepository) ListByUser(ctx context.Context, userID string) ([]*entities.SwapRequest, []*entities.Match, error) {
	keyCond := expression.Key("GSI2PK").Equal(expression.Value(userIndexPK(userID))).
		And(expression.Key("GSI2SK").BeginsWith(pkRequestPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, nil, pkgerrors.NewStoreError("list swap requests", err)
	}

	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.userIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, nil, pkgerrors.NewStoreError("list swap requests", err)
	}

	var rs []*entities.SwapRequest
	var ms []*entities.Match
	for _, item := range out.Items {
		req, err := unmarshalRequest(item)
		if err != nil {
			return nil, nil, err
		}
		rs = append(rs, req)
		edges, err := r.MatchesOf(ctx, req.ID())
		if err != nil {
			return nil, nil, err
		}
		ms = append(ms, edges...)
	}
	return rs, ms, nil
}

// MatchesOf retrieves the edges mirrored onto one request's partition.
func (r *SwapRequestRepository) MatchesOf(ctx context.Context, id valueobjects.SwapRequestID) ([]*entities.Match, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(requestPK(id.String()))).
		And(expression.Key("SK").BeginsWith(skMatchPrefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewStoreError("list matches", err)
	}

	out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("list matches", err)
	}

	matches := make([]*entities.Match, 0, len(out.Items))
	for _, item := range out.Items {
		m, err := unmarshalMatch(item)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// LoadDiscoveryCluster loads the subject plus every pending request
// offering one of the subject's wanted slots, via the offer index.
func (r *SwapRequestRepository) LoadDiscoveryCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error) {
	subject, err := r.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	requests := []*entities.SwapRequest{subject}
	seen := map[string]struct{}{subjectID.String(): {}}
	for _, slot := range subject.Wanted() {
		keyCond := expression.Key("GSI1PK").Equal(expression.Value(offerIndexPK(slot.String())))
		filt := expression.Name("Status").Equal(expression.Value(string(valueobjects.SwapStatusPending)))
		expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filt).Build()
		if err != nil {
			return nil, pkgerrors.NewStoreError("load discovery cluster", err)
		}

		out, err := r.client.Query(ctx, &awsdynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.offerIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			FilterExpression:          expr.Filter(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err != nil {
			return nil, pkgerrors.NewStoreError("load discovery cluster", err)
		}
		for _, item := range out.Items {
			req, err := unmarshalRequest(item)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[req.ID().String()]; dup {
				continue
			}
			seen[req.ID().String()] = struct{}{}
			requests = append(requests, req)
		}
	}
	return aggregates.NewMatchCluster(requests, nil)
}

// LoadMatchCluster loads the subject, its counterparts, and the
// counterparts' other edges with their endpoints.
func (r *SwapRequestRepository) LoadMatchCluster(ctx context.Context, subjectID valueobjects.SwapRequestID) (*aggregates.MatchCluster, error) {
	subject, err := r.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	requests := map[string]*entities.SwapRequest{subjectID.String(): subject}
	edges := map[string]*entities.Match{}

	subjectEdges, err := r.MatchesOf(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	for _, m := range subjectEdges {
		edges[m.Key()] = m
		otherID := m.Other(subjectID)
		if _, ok := requests[otherID.String()]; ok {
			continue
		}
		other, err := r.GetByID(ctx, otherID)
		if err != nil {
			return nil, err
		}
		requests[otherID.String()] = other

		otherEdges, err := r.MatchesOf(ctx, otherID)
		if err != nil {
			return nil, err
		}
		for _, mm := range otherEdges {
			edges[mm.Key()] = mm
			for _, endpoint := range []valueobjects.SwapRequestID{mm.A, mm.B} {
				if _, ok := requests[endpoint.String()]; ok {
					continue
				}
				far, err := r.GetByID(ctx, endpoint)
				if err != nil {
					return nil, err
				}
				requests[endpoint.String()] = far
			}
		}
	}

	rs := make([]*entities.SwapRequest, 0, len(requests))
	for _, req := range requests {
		rs = append(rs, req)
	}
	ms := make([]*entities.Match, 0, len(edges))
	for _, m := range edges {
		ms = append(ms, m)
	}
	return aggregates.NewMatchCluster(rs, ms)
}

// ApplyCluster persists a cluster delta as one transaction. Offer
// guards follow offered-slot changes; request writes are guarded by the
// versions recorded in the delta.
func (r *SwapRequestRepository) ApplyCluster(ctx context.Context, cluster *aggregates.MatchCluster, change *aggregates.ClusterChange) error {
	tx := newTx("apply cluster")

	for id, expected := range change.UpdatedRequests {
		req := cluster.Request(id)
		if req == nil {
			return pkgerrors.NewStoreError("apply cluster", errMissingFromCluster)
		}
		prev, err := r.getMeta(ctx, id)
		if err != nil {
			return err
		}
		prevOffered := stringAttr(prev, "Offered")

		item, err := marshalRequest(req)
		if err != nil {
			return err
		}
		cond := expression.Name("Version").Equal(expression.Value(expected))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return pkgerrors.NewStoreError("apply cluster", err)
		}
		tx.put(&types.Put{
			TableName:                 aws.String(r.tableName),
			Item:                      item,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})

		if prevOffered != req.Offered().String() {
			if err := r.addGuardDelete(tx, req.UserID(), prevOffered); err != nil {
				return err
			}
			guard, err := attributevalue.MarshalMap(offerGuardItem{
				PK:        userPK(req.UserID()),
				SK:        offerGuardSK(req.Offered().String()),
				RequestID: req.ID().String(),
			})
			if err != nil {
				return pkgerrors.NewStoreError("apply cluster", err)
			}
			tx.putGuard(&types.Put{
				TableName:           aws.String(r.tableName),
				Item:                guard,
				ConditionExpression: aws.String("attribute_not_exists(PK)"),
			}, "a swap request for this timeslot already exists")
		}
	}

	for id, expected := range change.DeletedRequests {
		prev, err := r.getMeta(ctx, id)
		if err != nil {
			return err
		}
		key, err := attributevalue.MarshalMap(map[string]string{
			"PK": requestPK(id.String()),
			"SK": skMeta,
		})
		if err != nil {
			return pkgerrors.NewStoreError("apply cluster", err)
		}
		cond := expression.Name("Version").Equal(expression.Value(expected))
		expr, err := expression.NewBuilder().WithCondition(cond).Build()
		if err != nil {
			return pkgerrors.NewStoreError("apply cluster", err)
		}
		tx.delete(&types.Delete{
			TableName:                 aws.String(r.tableName),
			Key:                       key,
			ConditionExpression:       expr.Condition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		if err := r.addGuardDelete(tx, stringAttr(prev, "UserID"), stringAttr(prev, "Offered")); err != nil {
			return err
		}
	}

	for _, m := range change.RemovedMatches {
		if err := r.addMatchDeletes(tx, m); err != nil {
			return err
		}
	}
	for _, m := range change.CreatedMatches {
		if err := r.addMatchPuts(tx, m); err != nil {
			return err
		}
	}
	for _, m := range change.UpdatedMatches {
		if err := r.addMatchPuts(tx, m); err != nil {
			return err
		}
	}
	return tx.execute(ctx, r.client)
}

func (r *SwapRequestRepository) getMeta(ctx context.Context, id valueobjects.SwapRequestID) (map[string]types.AttributeValue, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": requestPK(id.String()),
		"SK": skMeta,
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get swap request", err)
	}
	out, err := r.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("get swap request", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	return out.Item, nil
}

func (r *SwapRequestRepository) addGuardDelete(tx *txBuilder, userID, offered string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": userPK(userID),
		"SK": offerGuardSK(offered),
	})
	if err != nil {
		return pkgerrors.NewStoreError("apply cluster", err)
	}
	tx.delete(&types.Delete{TableName: aws.String(r.tableName), Key: key})
	return nil
}

// addMatchPuts writes an edge mirrored onto both partitions.
func (r *SwapRequestRepository) addMatchPuts(tx *txBuilder, m *entities.Match) error {
	for _, pair := range [][2]valueobjects.SwapRequestID{{m.A, m.B}, {m.B, m.A}} {
		item, err := attributevalue.MarshalMap(matchItem{
			PK:         requestPK(pair[0].String()),
			SK:         matchSK(pair[1].String()),
			EntityType: "Match",
			MatchA:     m.A.String(),
			MatchB:     m.B.String(),
			Status:     string(m.Status),
			CreatedAt:  m.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return pkgerrors.NewStoreError("apply cluster", err)
		}
		tx.put(&types.Put{TableName: aws.String(r.tableName), Item: item})
	}
	return nil
}

func (r *SwapRequestRepository) addMatchDeletes(tx *txBuilder, m *entities.Match) error {
	for _, pair := range [][2]valueobjects.SwapRequestID{{m.A, m.B}, {m.B, m.A}} {
		key, err := attributevalue.MarshalMap(map[string]string{
			"PK": requestPK(pair[0].String()),
			"SK": matchSK(pair[1].String()),
		})
		if err != nil {
			return pkgerrors.NewStoreError("apply cluster", err)
		}
		tx.delete(&types.Delete{TableName: aws.String(r.tableName), Key: key})
	}
	return nil
}

func marshalRequest(req *entities.SwapRequest) (map[string]types.AttributeValue, error) {
	wanted := make([]string, 0, len(req.Wanted()))
	for _, w := range req.Wanted() {
		wanted = append(wanted, w.String())
	}
	item, err := attributevalue.MarshalMap(requestItem{
		PK:         requestPK(req.ID().String()),
		SK:         skMeta,
		GSI1PK:     offerIndexPK(req.Offered().String()),
		GSI1SK:     requestPK(req.ID().String()),
		GSI2PK:     userIndexPK(req.UserID()),
		GSI2SK:     requestPK(req.ID().String()),
		EntityType: "SwapRequest",
		RequestID:  req.ID().String(),
		UserID:     req.UserID(),
		UserEmail:  req.UserEmail(),
		Status:     string(req.Status()),
		Offered:    req.Offered().String(),
		Wanted:     wanted,
		CreatedAt:  req.CreatedAt().Format(time.RFC3339),
		UpdatedAt:  req.UpdatedAt().Format(time.RFC3339),
		Version:    req.Version(),
	})
	if err != nil {
		return nil, pkgerrors.NewStoreError("marshal swap request", err)
	}
	return item, nil
}

func unmarshalRequest(item map[string]types.AttributeValue) (*entities.SwapRequest, error) {
	var ri requestItem
	if err := attributevalue.UnmarshalMap(item, &ri); err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal swap request", err)
	}
	id, err := valueobjects.NewSwapRequestIDFromString(ri.RequestID)
	if err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal swap request", err)
	}
	status, err := valueobjects.ParseSwapStatus(ri.Status)
	if err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal swap request", err)
	}
	wanted := make([]valueobjects.TimeslotID, 0, len(ri.Wanted))
	for _, w := range ri.Wanted {
		wanted = append(wanted, valueobjects.TimeslotID(w))
	}
	return entities.ReconstructSwapRequest(
		id, ri.UserID, ri.UserEmail, status,
		valueobjects.TimeslotID(ri.Offered), wanted,
		utils.ParseRFC3339(ri.CreatedAt), utils.ParseRFC3339(ri.UpdatedAt),
		ri.Version,
	), nil
}

func unmarshalMatch(item map[string]types.AttributeValue) (*entities.Match, error) {
	var mi matchItem
	if err := attributevalue.UnmarshalMap(item, &mi); err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal match", err)
	}
	a, err := valueobjects.NewSwapRequestIDFromString(mi.MatchA)
	if err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal match", err)
	}
	b, err := valueobjects.NewSwapRequestIDFromString(mi.MatchB)
	if err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal match", err)
	}
	status, err := valueobjects.ParseMatchStatus(mi.Status)
	if err != nil {
		return nil, pkgerrors.NewStoreError("unmarshal match", err)
	}
	m := entities.NewMatch(a, b)
	m.Status = status
	m.CreatedAt = utils.ParseRFC3339(mi.CreatedAt)
	return m, nil
}
