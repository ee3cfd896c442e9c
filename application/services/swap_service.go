package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

// SwapService drives the swap request lifecycle: creation with match
// discovery, set replacement, the two-sided agreement protocol, and
// deletion with cascading counterpart resets.
type SwapService struct {
	requests  ports.SwapRequestRepository
	timeslots ports.TimeslotRepository
	sink      ports.NotificationSink
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewSwapService creates the swap service.
func NewSwapService(
	requests ports.SwapRequestRepository,
	timeslots ports.TimeslotRepository,
	sink ports.NotificationSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SwapService {
	return &SwapService{
		requests:  requests,
		timeslots: timeslots,
		sink:      sink,
		metrics:   metrics,
		logger:    logger,
	}
}

// MatchView is one match edge as seen from a request's owner.
type MatchView struct {
	CounterpartRequestID string                  `json:"counterpartRequestId"`
	CounterpartEmail     string                  `json:"counterpartEmail"`
	CounterpartOffered   valueobjects.TimeslotID `json:"counterpartOffered"`
	Status               string                  `json:"status"`
}

// SwapRequestView is a request with its resolved matches.
type SwapRequestView struct {
	ID        string                    `json:"id"`
	Status    string                    `json:"status"`
	Offered   valueobjects.TimeslotID   `json:"offered"`
	Wanted    []valueobjects.TimeslotID `json:"wanted"`
	CreatedAt time.Time                 `json:"createdAt"`
	UpdatedAt time.Time                 `json:"updatedAt"`
	Matches   []MatchView               `json:"matches"`
}

// CreateSwapRequest creates a pending request and immediately runs
// match discovery against every reciprocal pending counterpart.
func (s *SwapService) CreateSwapRequest(ctx context.Context, userID, userEmail string, offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) (*entities.SwapRequest, error) {
	if err := s.verifyTimeslots(ctx, offered, wanted); err != nil {
		return nil, err
	}

	r, err := entities.NewSwapRequest(userID, userEmail, offered, wanted)
	if err != nil {
		return nil, err
	}
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, err
	}
	s.metrics.IncrementCounter("SwapRequestCreated", nil)
	s.logger.Info("swap request created",
		zap.String("requestID", r.ID().String()),
		zap.String("userID", userID),
		zap.String("offered", offered.String()))

	if err := s.discover(ctx, r.ID()); err != nil {
		// The request exists; discovery will rerun on the next update.
		s.logger.Error("match discovery failed", zap.Error(err),
			zap.String("requestID", r.ID().String()))
	}

	return s.requests.GetByID(ctx, r.ID())
}

// GetSwapRequest returns one of the user's requests with its matches
// resolved.
func (s *SwapService) GetSwapRequest(ctx context.Context, userID string, id valueobjects.SwapRequestID) (*SwapRequestView, error) {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	matches, err := s.requests.MatchesOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, r, matches)
}

// ListSwapRequests returns the user's requests with matched
// counterpart details, the counterpart's email included.
func (s *SwapService) ListSwapRequests(ctx context.Context, userID string) ([]*SwapRequestView, error) {
	rs, matches, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]*SwapRequestView, 0, len(rs))
	for _, r := range rs {
		var own []*entities.Match
		for _, m := range matches {
			if m.Involves(r.ID()) {
				own = append(own, m)
			}
		}
		v, err := s.buildView(ctx, r, own)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateSwapRequest replaces the offered/wanted sets entirely. Existing
// matches are torn down first, displaced counterparts settle exactly as
// on deletion, and discovery reruns over the new sets.
func (s *SwapService) UpdateSwapRequest(ctx context.Context, userID string, id valueobjects.SwapRequestID, offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) (*entities.SwapRequest, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.verifyTimeslots(ctx, offered, wanted); err != nil {
		return nil, err
	}

	cluster, err := s.requests.LoadMatchCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := cluster.Teardown(id)
	if err != nil {
		return nil, err
	}
	subject := cluster.Request(id)
	change.TrackRequest(subject)
	if err := subject.Replace(offered, wanted); err != nil {
		return nil, err
	}
	if err := s.requests.ApplyCluster(ctx, cluster, change); err != nil {
		return nil, err
	}

	if err := s.discover(ctx, id); err != nil {
		s.logger.Error("match discovery failed", zap.Error(err),
			zap.String("requestID", id.String()))
	}
	return s.requests.GetByID(ctx, id)
}

// AgreeToSwap records the user's acceptance of one matched counterpart.
// When the counterpart already agreed the swap becomes final and both
// parties are notified.
func (s *SwapService) AgreeToSwap(ctx context.Context, userID string, id, counterpartID valueobjects.SwapRequestID) (*entities.SwapRequest, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}

	cluster, err := s.requests.LoadMatchCluster(ctx, id)
	if err != nil {
		return nil, err
	}
	change, err := cluster.Agree(id, counterpartID)
	if err != nil {
		return nil, err
	}
	if err := s.requests.ApplyCluster(ctx, cluster, change); err != nil {
		return nil, err
	}

	if len(change.UpdatedMatches) > 0 {
		s.metrics.IncrementCounter("SwapAgreed", nil)
		s.notifyAgreement(ctx, cluster.Request(id), cluster.Request(counterpartID))
	}
	return cluster.Request(id), nil
}

// DeleteSwapRequest removes a request; counterparts left without
// matches fall back to pending.
func (s *SwapService) DeleteSwapRequest(ctx context.Context, userID string, id valueobjects.SwapRequestID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}

	cluster, err := s.requests.LoadMatchCluster(ctx, id)
	if err != nil {
		return err
	}
	change, err := cluster.Remove(id)
	if err != nil {
		return err
	}
	if err := s.requests.ApplyCluster(ctx, cluster, change); err != nil {
		return err
	}

	s.logger.Info("swap request deleted",
		zap.String("requestID", id.String()),
		zap.String("userID", userID))
	return nil
}

// discover loads the discovery cluster, runs matching and persists the
// result; both endpoints of every new edge are notified.
func (s *SwapService) discover(ctx context.Context, id valueobjects.SwapRequestID) error {
	cluster, err := s.requests.LoadDiscoveryCluster(ctx, id)
	if err != nil {
		return err
	}
	change, err := cluster.Discover(id)
	if err != nil {
		return err
	}
	if change == nil {
		return nil
	}
	if err := s.requests.ApplyCluster(ctx, cluster, change); err != nil {
		return err
	}

	s.metrics.IncrementCounter("SwapMatchFound", nil)
	for _, m := range change.CreatedMatches {
		a, b := cluster.Request(m.A), cluster.Request(m.B)
		s.notifyMatch(ctx, a, b)
		s.notifyMatch(ctx, b, a)
	}
	return nil
}

// owned fetches a request and hides other users' requests behind not
// found.
func (s *SwapService) owned(ctx context.Context, userID string, id valueobjects.SwapRequestID) (*entities.SwapRequest, error) {
	r, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID() != userID {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	return r, nil
}

// verifyTimeslots resolves the offered and wanted ids against the
// inventory; an unknown id is not found.
func (s *SwapService) verifyTimeslots(ctx context.Context, offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) error {
	ids := append([]valueobjects.TimeslotID{offered}, wanted...)
	_, err := s.timeslots.GetByIDs(ctx, ids)
	return err
}

func (s *SwapService) buildView(ctx context.Context, r *entities.SwapRequest, matches []*entities.Match) (*SwapRequestView, error) {
	v := &SwapRequestView{
		ID:        r.ID().String(),
		Status:    string(r.Status()),
		Offered:   r.Offered(),
		Wanted:    r.Wanted(),
		CreatedAt: r.CreatedAt(),
		UpdatedAt: r.UpdatedAt(),
		Matches:   []MatchView{},
	}
	for _, m := range matches {
		otherID := m.Other(r.ID())
		other, err := s.requests.GetByID(ctx, otherID)
		if err != nil {
			return nil, err
		}
		v.Matches = append(v.Matches, MatchView{
			CounterpartRequestID: otherID.String(),
			CounterpartEmail:     other.UserEmail(),
			CounterpartOffered:   other.Offered(),
			Status:               string(m.Status),
		})
	}
	return v, nil
}

func (s *SwapService) notifyMatch(ctx context.Context, to, counterpart *entities.SwapRequest) {
	err := s.sink.PublishMatchFound(ctx, ports.MatchFoundNotification{
		RequestID:       to.ID(),
		CounterpartID:   counterpart.ID(),
		UserEmail:       to.UserEmail(),
		OfferedSlot:     to.Offered(),
		CounterpartSlot: counterpart.Offered(),
	})
	if err != nil {
		s.logger.Warn("match notification dropped", zap.Error(err),
			zap.String("requestID", to.ID().String()))
	}
}

func (s *SwapService) notifyAgreement(ctx context.Context, a, b *entities.SwapRequest) {
	for _, pair := range [][2]*entities.SwapRequest{{a, b}, {b, a}} {
		to, other := pair[0], pair[1]
		err := s.sink.PublishAgreementReached(ctx, ports.AgreementNotification{
			RequestID:     to.ID(),
			CounterpartID: other.ID(),
			UserEmail:     to.UserEmail(),
			OfferedSlot:   to.Offered(),
			ReceivedSlot:  other.Offered(),
		})
		if err != nil {
			s.logger.Warn("agreement notification dropped", zap.Error(err),
				zap.String("requestID", to.ID().String()))
		}
	}
}
