package entities

import (
	"sort"
	"time"

	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// SwapRequest is a user's offer of one held timeslot in exchange for
// any one of a set of wanted timeslots. Status changes only through the
// transition table in valueobjects; anything else is rejected here.
type SwapRequest struct {
	id        valueobjects.SwapRequestID
	userID    string
	userEmail string
	status    valueobjects.SwapStatus
	offered   valueobjects.TimeslotID
	wanted    map[valueobjects.TimeslotID]struct{}
	createdAt time.Time
	updatedAt time.Time
	version   int
}

// NewSwapRequest creates a pending request, rejecting a self-swap.
func NewSwapRequest(userID, userEmail string, offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) (*SwapRequest, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}
	if offered.IsZero() {
		return nil, pkgerrors.NewValidationError("offered timeslot is required")
	}
	if len(wanted) == 0 {
		return nil, pkgerrors.NewValidationError("at least one wanted timeslot is required")
	}
	wantedSet, err := buildWantedSet(offered, wanted)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &SwapRequest{
		id:        valueobjects.NewSwapRequestID(),
		userID:    userID,
		userEmail: userEmail,
		status:    valueobjects.SwapStatusPending,
		offered:   offered,
		wanted:    wantedSet,
		createdAt: now,
		updatedAt: now,
		version:   1,
	}, nil
}

// ReconstructSwapRequest rebuilds a request from stored data.
func ReconstructSwapRequest(
	id valueobjects.SwapRequestID,
	userID, userEmail string,
	status valueobjects.SwapStatus,
	offered valueobjects.TimeslotID,
	wanted []valueobjects.TimeslotID,
	createdAt, updatedAt time.Time,
	version int,
) *SwapRequest {
	wantedSet := make(map[valueobjects.TimeslotID]struct{}, len(wanted))
	for _, w := range wanted {
		wantedSet[w] = struct{}{}
	}
	return &SwapRequest{
		id:        id,
		userID:    userID,
		userEmail: userEmail,
		status:    status,
		offered:   offered,
		wanted:    wantedSet,
		createdAt: createdAt,
		updatedAt: updatedAt,
		version:   version,
	}
}

func (r *SwapRequest) ID() valueobjects.SwapRequestID  { return r.id }
func (r *SwapRequest) UserID() string                  { return r.userID }
func (r *SwapRequest) UserEmail() string               { return r.userEmail }
func (r *SwapRequest) Status() valueobjects.SwapStatus { return r.status }
func (r *SwapRequest) Offered() valueobjects.TimeslotID {
	return r.offered
}
func (r *SwapRequest) CreatedAt() time.Time { return r.createdAt }
func (r *SwapRequest) UpdatedAt() time.Time { return r.updatedAt }
func (r *SwapRequest) Version() int         { return r.version }

// Wanted returns the wanted timeslot ids in stable order.
func (r *SwapRequest) Wanted() []valueobjects.TimeslotID {
	out := make([]valueobjects.TimeslotID, 0, len(r.wanted))
	for w := range r.wanted {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Wants reports whether the request wants the given timeslot.
func (r *SwapRequest) Wants(id valueobjects.TimeslotID) bool {
	_, ok := r.wanted[id]
	return ok
}

// ReciprocatesWith reports full reciprocity with another request: the
// counterpart's offer is one of our wants and our offer is one of the
// counterpart's wants, and the owners differ.
func (r *SwapRequest) ReciprocatesWith(other *SwapRequest) bool {
	if other == nil || other.userID == r.userID {
		return false
	}
	return r.Wants(other.offered) && other.Wants(r.offered)
}

// Replace swaps out the offer and want sets entirely and bumps
// updatedAt. Partial updates are not supported.
func (r *SwapRequest) Replace(offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) error {
	if offered.IsZero() {
		return pkgerrors.NewValidationError("offered timeslot is required")
	}
	if len(wanted) == 0 {
		return pkgerrors.NewValidationError("at least one wanted timeslot is required")
	}
	wantedSet, err := buildWantedSet(offered, wanted)
	if err != nil {
		return err
	}
	r.offered = offered
	r.wanted = wantedSet
	r.updatedAt = time.Now().UTC()
	r.version++
	return nil
}

// TransitionTo moves the request to a new status, enforcing the
// transition table.
func (r *SwapRequest) TransitionTo(status valueobjects.SwapStatus) error {
	if r.status == status {
		return nil
	}
	if !r.status.CanTransition(status) {
		return pkgerrors.NewValidationError(
			"swap request cannot move from " + string(r.status) + " to " + string(status))
	}
	r.status = status
	r.updatedAt = time.Now().UTC()
	r.version++
	return nil
}

func buildWantedSet(offered valueobjects.TimeslotID, wanted []valueobjects.TimeslotID) (map[valueobjects.TimeslotID]struct{}, error) {
	set := make(map[valueobjects.TimeslotID]struct{}, len(wanted))
	for _, w := range wanted {
		if w.IsZero() {
			return nil, pkgerrors.NewValidationError("wanted timeslot id cannot be empty")
		}
		if w == offered {
			return nil, pkgerrors.NewValidationError("cannot swap a timeslot with itself")
		}
		set[w] = struct{}{}
	}
	return set, nil
}
