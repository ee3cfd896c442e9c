package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapcourses-backend/application/ports"
	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	"swapcourses-backend/infrastructure/persistence/memory"
	pkgerrors "swapcourses-backend/pkg/errors"
	"swapcourses-backend/pkg/observability"
)

// captureSink records notifications instead of delivering them.
type captureSink struct {
	mu         sync.Mutex
	matches    []ports.MatchFoundNotification
	agreements []ports.AgreementNotification
}

func (c *captureSink) PublishMatchFound(ctx context.Context, n ports.MatchFoundNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, n)
	return nil
}

func (c *captureSink) PublishAgreementReached(ctx context.Context, n ports.AgreementNotification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agreements = append(c.agreements, n)
	return nil
}

func newSwapService(t *testing.T) (*SwapService, *captureSink) {
	t.Helper()
	store := memory.NewStore()
	store.SeedTimeslots(
		&entities.Timeslot{ID: "slot-1", CourseCode: "MATH1", Group: "A"},
		&entities.Timeslot{ID: "slot-2", CourseCode: "MATH1", Group: "B"},
		&entities.Timeslot{ID: "slot-3", CourseCode: "MATH1", Group: "C"},
		&entities.Timeslot{ID: "slot-4", CourseCode: "MATH1", Group: "D"},
	)
	sink := &captureSink{}
	metrics := observability.NewMetrics(nil, "Test", zap.NewNop())
	t.Cleanup(metrics.Close)
	svc := NewSwapService(store.SwapRequests(), store.Timeslots(), sink, metrics, zap.NewNop())
	return svc, sink
}

func wantedIDs(ids ...string) []valueobjects.TimeslotID {
	out := make([]valueobjects.TimeslotID, len(ids))
	for i, id := range ids {
		out[i] = valueobjects.TimeslotID(id)
	}
	return out
}

func TestSwapService_CreateSwapRequest(t *testing.T) {
	svc, sink := newSwapService(t)
	ctx := context.Background()

	t.Run("no counterpart stays pending", func(t *testing.T) {
		r, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2"))
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusPending, r.Status())
		assert.Empty(t, sink.matches)
	})

	t.Run("reciprocal counterpart matches immediately", func(t *testing.T) {
		r, err := svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusWaiting, r.Status())
		// Both parties were notified.
		require.Len(t, sink.matches, 2)
		emails := []string{sink.matches[0].UserEmail, sink.matches[1].UserEmail}
		assert.ElementsMatch(t, []string{"alice@example.edu", "bob@example.edu"}, emails)
	})

	t.Run("unknown timeslot is not found", func(t *testing.T) {
		_, err := svc.CreateSwapRequest(ctx, "cara", "cara@example.edu", "slot-1", wantedIDs("slot-99"))
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("self swap is invalid", func(t *testing.T) {
		_, err := svc.CreateSwapRequest(ctx, "cara", "cara@example.edu", "slot-1", wantedIDs("slot-1"))
		assert.True(t, pkgerrors.IsValidation(err))
	})

	t.Run("second request for the same slot conflicts", func(t *testing.T) {
		_, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-3"))
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestSwapService_AgreementFlow(t *testing.T) {
	svc, sink := newSwapService(t)
	ctx := context.Background()

	a, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2"))
	require.NoError(t, err)
	b, err := svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
	require.NoError(t, err)

	t.Run("one-sided agree is not final", func(t *testing.T) {
		r, err := svc.AgreeToSwap(ctx, "alice", a.ID(), b.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusAgreed, r.Status())
		assert.Empty(t, sink.agreements)

		view, err := svc.GetSwapRequest(ctx, "bob", b.ID())
		require.NoError(t, err)
		assert.Equal(t, string(valueobjects.SwapStatusWaiting), view.Status)
	})

	t.Run("second agree finalizes and notifies both", func(t *testing.T) {
		r, err := svc.AgreeToSwap(ctx, "bob", b.ID(), a.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusAgreed, r.Status())
		require.Len(t, sink.agreements, 2)

		view, err := svc.GetSwapRequest(ctx, "alice", a.ID())
		require.NoError(t, err)
		require.Len(t, view.Matches, 1)
		assert.Equal(t, string(valueobjects.MatchStatusAgreed), view.Matches[0].Status)
		assert.Equal(t, "bob@example.edu", view.Matches[0].CounterpartEmail)
	})

	t.Run("agreeing for someone else's request is hidden", func(t *testing.T) {
		_, err := svc.AgreeToSwap(ctx, "mallory", a.ID(), b.ID())
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestSwapService_DisplacementOnAgree(t *testing.T) {
	svc, _ := newSwapService(t)
	ctx := context.Background()

	// Alice wants either of two slots; Bob and Dana both reciprocate.
	a, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2", "slot-3"))
	require.NoError(t, err)
	b, err := svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
	require.NoError(t, err)
	d, err := svc.CreateSwapRequest(ctx, "dana", "dana@example.edu", "slot-3", wantedIDs("slot-1"))
	require.NoError(t, err)

	view, err := svc.GetSwapRequest(ctx, "alice", a.ID())
	require.NoError(t, err)
	require.Len(t, view.Matches, 2)

	// Alice commits to Bob; Dana's edge is torn down and she returns
	// to pending.
	_, err = svc.AgreeToSwap(ctx, "alice", a.ID(), b.ID())
	require.NoError(t, err)

	danaView, err := svc.GetSwapRequest(ctx, "dana", d.ID())
	require.NoError(t, err)
	assert.Equal(t, string(valueobjects.SwapStatusPending), danaView.Status)
	assert.Empty(t, danaView.Matches)
}

func TestSwapService_UpdateSwapRequest(t *testing.T) {
	svc, _ := newSwapService(t)
	ctx := context.Background()

	a, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2"))
	require.NoError(t, err)
	b, err := svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
	require.NoError(t, err)
	_, err = svc.CreateSwapRequest(ctx, "dana", "dana@example.edu", "slot-4", wantedIDs("slot-1"))
	require.NoError(t, err)

	// Alice retargets to slot-4; the match with Bob is torn down and a
	// fresh one with Dana is discovered.
	updated, err := svc.UpdateSwapRequest(ctx, "alice", a.ID(), "slot-1", wantedIDs("slot-4"))
	require.NoError(t, err)
	assert.Equal(t, valueobjects.SwapStatusWaiting, updated.Status())
	assert.Equal(t, wantedIDs("slot-4"), updated.Wanted())

	bobView, err := svc.GetSwapRequest(ctx, "bob", b.ID())
	require.NoError(t, err)
	assert.Equal(t, string(valueobjects.SwapStatusPending), bobView.Status)
	assert.Empty(t, bobView.Matches)

	aliceView, err := svc.GetSwapRequest(ctx, "alice", a.ID())
	require.NoError(t, err)
	require.Len(t, aliceView.Matches, 1)
	assert.Equal(t, "dana@example.edu", aliceView.Matches[0].CounterpartEmail)
}

func TestSwapService_DeleteSwapRequest(t *testing.T) {
	svc, _ := newSwapService(t)
	ctx := context.Background()

	a, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2"))
	require.NoError(t, err)
	b, err := svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSwapRequest(ctx, "alice", a.ID()))

	_, err = svc.GetSwapRequest(ctx, "alice", a.ID())
	assert.True(t, pkgerrors.IsNotFound(err))

	bobView, err := svc.GetSwapRequest(ctx, "bob", b.ID())
	require.NoError(t, err)
	assert.Equal(t, string(valueobjects.SwapStatusPending), bobView.Status)
	assert.Empty(t, bobView.Matches)
}

func TestSwapService_ListSwapRequests(t *testing.T) {
	svc, _ := newSwapService(t)
	ctx := context.Background()

	_, err := svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-1", wantedIDs("slot-2"))
	require.NoError(t, err)
	_, err = svc.CreateSwapRequest(ctx, "alice", "alice@example.edu", "slot-3", wantedIDs("slot-4"))
	require.NoError(t, err)
	_, err = svc.CreateSwapRequest(ctx, "bob", "bob@example.edu", "slot-2", wantedIDs("slot-1"))
	require.NoError(t, err)

	views, err := svc.ListSwapRequests(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, views, 2)

	matched := 0
	for _, v := range views {
		if len(v.Matches) > 0 {
			matched++
			assert.Equal(t, "bob@example.edu", v.Matches[0].CounterpartEmail)
		}
	}
	assert.Equal(t, 1, matched)
}
