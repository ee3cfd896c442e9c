package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

func testRequest(t *testing.T, user string, offered valueobjects.TimeslotID, wanted ...valueobjects.TimeslotID) *entities.SwapRequest {
	t.Helper()
	r, err := entities.NewSwapRequest(user, user+"@example.edu", offered, wanted)
	require.NoError(t, err)
	return r
}

func cluster(t *testing.T, requests ...*entities.SwapRequest) *MatchCluster {
	t.Helper()
	c, err := NewMatchCluster(requests, nil)
	require.NoError(t, err)
	return c
}

func TestMatchCluster_Discover(t *testing.T) {
	t.Run("reciprocal pair gains a waiting edge", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1", "slot-3")
		c := cluster(t, a, b)

		change, err := c.Discover(a.ID())
		require.NoError(t, err)
		require.NotNil(t, change)

		assert.Equal(t, valueobjects.SwapStatusWaiting, a.Status())
		assert.Equal(t, valueobjects.SwapStatusWaiting, b.Status())
		require.Len(t, change.CreatedMatches, 1)
		assert.Equal(t, valueobjects.MatchStatusWaiting, change.CreatedMatches[0].Status)
		assert.Len(t, c.MatchesOf(a.ID()), 1)
	})

	t.Run("reciprocity is required in both directions", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		// Bob offers what Alice wants but does not want slot-1.
		b := testRequest(t, "bob", "slot-2", "slot-3")
		c := cluster(t, a, b)

		change, err := c.Discover(a.ID())
		require.NoError(t, err)
		assert.Nil(t, change)
		assert.Equal(t, valueobjects.SwapStatusPending, a.Status())
		assert.Equal(t, valueobjects.SwapStatusPending, b.Status())
	})

	t.Run("same user never matches itself", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "alice", "slot-2", "slot-1")
		c := cluster(t, a, b)

		change, err := c.Discover(a.ID())
		require.NoError(t, err)
		assert.Nil(t, change)
	})

	t.Run("matches every pending reciprocal candidate", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2", "slot-3")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		d := testRequest(t, "dana", "slot-3", "slot-1")
		c := cluster(t, a, b, d)

		change, err := c.Discover(a.ID())
		require.NoError(t, err)
		require.NotNil(t, change)
		assert.Len(t, change.CreatedMatches, 2)
		assert.Len(t, c.MatchesOf(a.ID()), 2)
		assert.Equal(t, valueobjects.SwapStatusWaiting, b.Status())
		assert.Equal(t, valueobjects.SwapStatusWaiting, d.Status())
	})

	t.Run("non-pending subject conflicts", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)

		_, err := c.Discover(a.ID())
		require.NoError(t, err)
		_, err = c.Discover(a.ID())
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestMatchCluster_Agree(t *testing.T) {
	matched := func(t *testing.T) (*MatchCluster, *entities.SwapRequest, *entities.SwapRequest) {
		t.Helper()
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)
		return c, a, b
	}

	t.Run("one-sided agree keeps the edge waiting", func(t *testing.T) {
		c, a, b := matched(t)

		change, err := c.Agree(a.ID(), b.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobjects.SwapStatusAgreed, a.Status())
		assert.Equal(t, valueobjects.SwapStatusWaiting, b.Status())
		assert.Empty(t, change.UpdatedMatches)
		require.Len(t, c.MatchesOf(a.ID()), 1)
		assert.Equal(t, valueobjects.MatchStatusWaiting, c.MatchesOf(a.ID())[0].Status)
	})

	t.Run("second agree finalizes the pair", func(t *testing.T) {
		c, a, b := matched(t)

		_, err := c.Agree(a.ID(), b.ID())
		require.NoError(t, err)
		change, err := c.Agree(b.ID(), a.ID())
		require.NoError(t, err)

		assert.Equal(t, valueobjects.SwapStatusAgreed, a.Status())
		assert.Equal(t, valueobjects.SwapStatusAgreed, b.Status())
		require.Len(t, change.UpdatedMatches, 1)
		assert.Equal(t, valueobjects.MatchStatusAgreed, change.UpdatedMatches[0].Status)
	})

	t.Run("agree tears down the subject's other edges", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2", "slot-3")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		d := testRequest(t, "dana", "slot-3", "slot-1")
		c := cluster(t, a, b, d)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)

		change, err := c.Agree(a.ID(), b.ID())
		require.NoError(t, err)

		require.Len(t, change.RemovedMatches, 1)
		assert.True(t, change.RemovedMatches[0].Involves(d.ID()))
		// Dana lost her only edge and falls back to pending.
		assert.Equal(t, valueobjects.SwapStatusPending, d.Status())
		assert.Equal(t, valueobjects.SwapStatusWaiting, b.Status())
		assert.Len(t, c.MatchesOf(a.ID()), 1)
	})

	t.Run("displaced counterpart with other edges stays waiting", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2", "slot-3")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		d := testRequest(t, "dana", "slot-3", "slot-1", "slot-2")
		c := cluster(t, a, b, d)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)
		// Dana also matches Bob.
		m := entities.NewMatch(d.ID(), b.ID())
		c.matches[m.Key()] = m

		_, err = c.Agree(a.ID(), b.ID())
		require.NoError(t, err)

		// Dana lost the edge to Alice but keeps the one to Bob.
		assert.Equal(t, valueobjects.SwapStatusWaiting, d.Status())
		assert.Len(t, c.MatchesOf(d.ID()), 1)
	})

	t.Run("one-sided agreed counterpart resets when displaced", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2", "slot-3")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		d := testRequest(t, "dana", "slot-3", "slot-1")
		c := cluster(t, a, b, d)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)

		// Dana agrees to Alice first, one-sidedly.
		_, err = c.Agree(d.ID(), a.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusAgreed, d.Status())

		// Alice picks Bob instead; Dana's agreement is displaced.
		_, err = c.Agree(a.ID(), b.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusPending, d.Status())
	})

	t.Run("agree without an edge is not found", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)

		_, err := c.Agree(a.ID(), b.ID())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("pending subject cannot agree", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)
		m := entities.NewMatch(a.ID(), b.ID())
		c.matches[m.Key()] = m

		_, err := c.Agree(a.ID(), b.ID())
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestMatchCluster_Remove(t *testing.T) {
	t.Run("counterpart without other edges resets to pending", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)

		change, err := c.Remove(a.ID())
		require.NoError(t, err)

		assert.Len(t, change.RemovedMatches, 1)
		assert.Equal(t, valueobjects.SwapStatusPending, b.Status())
		assert.Nil(t, c.Request(a.ID()))
	})

	t.Run("removing half of an agreed pair resets the survivor", func(t *testing.T) {
		a := testRequest(t, "alice", "slot-1", "slot-2")
		b := testRequest(t, "bob", "slot-2", "slot-1")
		c := cluster(t, a, b)
		_, err := c.Discover(a.ID())
		require.NoError(t, err)
		_, err = c.Agree(a.ID(), b.ID())
		require.NoError(t, err)
		_, err = c.Agree(b.ID(), a.ID())
		require.NoError(t, err)

		_, err = c.Remove(a.ID())
		require.NoError(t, err)
		assert.Equal(t, valueobjects.SwapStatusPending, b.Status())
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		c := cluster(t)
		_, err := c.Remove(valueobjects.NewSwapRequestID())
		assert.True(t, pkgerrors.IsNotFound(err))
	})
}

func TestMatchCluster_Teardown(t *testing.T) {
	a := testRequest(t, "alice", "slot-1", "slot-2")
	b := testRequest(t, "bob", "slot-2", "slot-1")
	c := cluster(t, a, b)
	_, err := c.Discover(a.ID())
	require.NoError(t, err)

	change, err := c.Teardown(a.ID())
	require.NoError(t, err)

	assert.Len(t, change.RemovedMatches, 1)
	assert.Equal(t, valueobjects.SwapStatusPending, a.Status())
	assert.Equal(t, valueobjects.SwapStatusPending, b.Status())
	// The subject survives teardown, unlike removal.
	assert.NotNil(t, c.Request(a.ID()))
	assert.Empty(t, c.Matches())
}
