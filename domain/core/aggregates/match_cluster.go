package aggregates

import (
	"sort"

	"swapcourses-backend/domain/core/entities"
	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// MatchCluster is the neighborhood of swap requests loaded for one
// matching operation: the subject request, every reciprocal candidate
// or matched counterpart, and the counterparts' own other matches. All
// status transitions and edge changes happen here so that one mutation
// maps to one atomic persistence transaction.
type MatchCluster struct {
	requests map[valueobjects.SwapRequestID]*entities.SwapRequest
	matches  map[string]*entities.Match
}

// ClusterChange is the delta of one cluster mutation: requests whose
// status or version moved, edges created and removed. Repositories
// persist it as a single transaction keyed on each request's prior
// version.
type ClusterChange struct {
	// UpdatedRequests maps each touched request to the version it held
	// before this mutation, for optimistic concurrency guards.
	UpdatedRequests map[valueobjects.SwapRequestID]int

	// DeletedRequests maps each removed request to its version at
	// removal time.
	DeletedRequests map[valueobjects.SwapRequestID]int

	CreatedMatches []*entities.Match
	UpdatedMatches []*entities.Match
	RemovedMatches []*entities.Match
}

func newClusterChange() *ClusterChange {
	return &ClusterChange{
		UpdatedRequests: make(map[valueobjects.SwapRequestID]int),
		DeletedRequests: make(map[valueobjects.SwapRequestID]int),
	}
}

// TrackRequest records a request's pre-mutation version so that
// out-of-cluster edits to it, a set replacement for one, ride the same
// transaction guard.
func (ch *ClusterChange) TrackRequest(r *entities.SwapRequest) {
	if _, ok := ch.UpdatedRequests[r.ID()]; !ok {
		ch.UpdatedRequests[r.ID()] = r.Version()
	}
}

// NewMatchCluster builds a cluster from loaded requests and the match
// edges among them. Edges referencing requests outside the cluster are
// rejected; the discovery logic depends on the counterparts' full edge
// sets being present.
func NewMatchCluster(requests []*entities.SwapRequest, matches []*entities.Match) (*MatchCluster, error) {
	c := &MatchCluster{
		requests: make(map[valueobjects.SwapRequestID]*entities.SwapRequest, len(requests)),
		matches:  make(map[string]*entities.Match, len(matches)),
	}
	for _, r := range requests {
		c.requests[r.ID()] = r
	}
	for _, m := range matches {
		if _, ok := c.requests[m.A]; !ok {
			return nil, pkgerrors.NewInternalError("match references request outside cluster")
		}
		if _, ok := c.requests[m.B]; !ok {
			return nil, pkgerrors.NewInternalError("match references request outside cluster")
		}
		c.matches[m.Key()] = m
	}
	return c, nil
}

// Request returns a request in the cluster, or nil.
func (c *MatchCluster) Request(id valueobjects.SwapRequestID) *entities.SwapRequest {
	return c.requests[id]
}

// Matches returns every edge in the cluster in stable key order.
func (c *MatchCluster) Matches() []*entities.Match {
	out := make([]*entities.Match, 0, len(c.matches))
	for _, m := range c.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// MatchesOf returns the edges touching one request.
func (c *MatchCluster) MatchesOf(id valueobjects.SwapRequestID) []*entities.Match {
	var out []*entities.Match
	for _, m := range c.Matches() {
		if m.Involves(id) {
			out = append(out, m)
		}
	}
	return out
}

// Discover runs matching for the subject request: every pending request
// in the cluster whose offered/wanted sets reciprocate the subject's
// gains a waiting-for-agreement edge, and both endpoints move to
// waiting-for-agreement. Candidates by the same user are skipped. A nil
// change with no error means no reciprocal candidate existed.
func (c *MatchCluster) Discover(subjectID valueobjects.SwapRequestID) (*ClusterChange, error) {
	subject := c.requests[subjectID]
	if subject == nil {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	if subject.Status() != valueobjects.SwapStatusPending {
		return nil, pkgerrors.NewConflictError("swap request is not pending")
	}

	var candidates []*entities.SwapRequest
	for _, id := range c.requestIDs() {
		r := c.requests[id]
		if r.ID() == subjectID || r.UserID() == subject.UserID() {
			continue
		}
		if r.Status() != valueobjects.SwapStatusPending {
			continue
		}
		if subject.ReciprocatesWith(r) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	change := newClusterChange()
	c.transition(change, subject, valueobjects.SwapStatusWaiting)
	for _, cand := range candidates {
		c.transition(change, cand, valueobjects.SwapStatusWaiting)
		m := entities.NewMatch(subjectID, cand.ID())
		c.matches[m.Key()] = m
		change.CreatedMatches = append(change.CreatedMatches, m)
	}
	return change, nil
}

// Agree records the subject's acceptance of one counterpart. The
// subject moves to agreed and every other edge it held is torn down; a
// counterpart displaced that way falls back to pending when no other
// edge holds it in waiting, and an agreed counterpart displaced by the
// teardown resets to pending. The chosen edge flips to agreed only when
// the counterpart already agreed, making the pair final.
func (c *MatchCluster) Agree(subjectID, counterpartID valueobjects.SwapRequestID) (*ClusterChange, error) {
	subject := c.requests[subjectID]
	if subject == nil {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}
	counterpart := c.requests[counterpartID]
	if counterpart == nil {
		return nil, pkgerrors.NewNotFoundError("counterpart swap request")
	}
	chosen := c.matches[entities.MatchKey(subjectID, counterpartID)]
	if chosen == nil {
		return nil, pkgerrors.NewNotFoundError("match")
	}
	if subject.Status() != valueobjects.SwapStatusWaiting {
		return nil, pkgerrors.NewConflictError("swap request is not awaiting agreement")
	}

	change := newClusterChange()
	c.transition(change, subject, valueobjects.SwapStatusAgreed)

	// Tear down every other edge of the subject before finalizing.
	for _, m := range c.MatchesOf(subjectID) {
		if m.Key() == chosen.Key() {
			continue
		}
		c.removeMatch(change, m)
		c.settleDisplaced(change, m.Other(subjectID))
	}

	if counterpart.Status() == valueobjects.SwapStatusAgreed {
		chosen.Finalize()
		change.UpdatedMatches = append(change.UpdatedMatches, chosen)
	}
	return change, nil
}

// Remove deletes the subject request and all of its edges. Counterparts
// left without edges fall back to pending; a one-sided agreed
// counterpart resets the same way. Removal of half of a mutually agreed
// pair also resets the surviving side.
func (c *MatchCluster) Remove(subjectID valueobjects.SwapRequestID) (*ClusterChange, error) {
	subject := c.requests[subjectID]
	if subject == nil {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}

	change := newClusterChange()
	change.DeletedRequests[subjectID] = subject.Version()
	for _, m := range c.MatchesOf(subjectID) {
		c.removeMatch(change, m)
		c.settleDisplaced(change, m.Other(subjectID))
	}
	delete(c.requests, subjectID)
	return change, nil
}

// Teardown detaches the subject from all of its matches without
// deleting it, resetting it to pending. Used before a request's
// offered/wanted sets are replaced, which restarts matching from
// scratch.
func (c *MatchCluster) Teardown(subjectID valueobjects.SwapRequestID) (*ClusterChange, error) {
	subject := c.requests[subjectID]
	if subject == nil {
		return nil, pkgerrors.NewNotFoundError("swap request")
	}

	change := newClusterChange()
	for _, m := range c.MatchesOf(subjectID) {
		c.removeMatch(change, m)
		c.settleDisplaced(change, m.Other(subjectID))
	}
	if subject.Status() != valueobjects.SwapStatusPending {
		c.transition(change, subject, valueobjects.SwapStatusPending)
	}
	return change, nil
}

// settleDisplaced resets a counterpart that just lost an edge to
// pending when no remaining edge holds it, regardless of whether it was
// waiting or one-sidedly agreed.
func (c *MatchCluster) settleDisplaced(change *ClusterChange, id valueobjects.SwapRequestID) {
	r := c.requests[id]
	if r == nil {
		return
	}
	if len(c.MatchesOf(id)) > 0 {
		return
	}
	if r.Status() != valueobjects.SwapStatusPending {
		c.transition(change, r, valueobjects.SwapStatusPending)
	}
}

func (c *MatchCluster) transition(change *ClusterChange, r *entities.SwapRequest, to valueobjects.SwapStatus) {
	change.TrackRequest(r)
	// Cluster logic only performs table-legal transitions.
	_ = r.TransitionTo(to)
}

func (c *MatchCluster) removeMatch(change *ClusterChange, m *entities.Match) {
	delete(c.matches, m.Key())
	change.RemovedMatches = append(change.RemovedMatches, m)
}

func (c *MatchCluster) requestIDs() []valueobjects.SwapRequestID {
	ids := make([]valueobjects.SwapRequestID, 0, len(c.requests))
	for id := range c.requests {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}
