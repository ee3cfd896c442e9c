package entities

import (
	"time"

	"swapcourses-backend/domain/core/valueobjects"
	pkgerrors "swapcourses-backend/pkg/errors"
)

// Match is an undirected candidate edge between two reciprocal swap
// requests. The pair is stored in normalized order so one edge never
// appears twice under different keys.
type Match struct {
	A         valueobjects.SwapRequestID
	B         valueobjects.SwapRequestID
	Status    valueobjects.MatchStatus
	CreatedAt time.Time
}

// NewMatch creates a waiting candidate edge between two requests.
func NewMatch(a, b valueobjects.SwapRequestID) *Match {
	if b.String() < a.String() {
		a, b = b, a
	}
	return &Match{
		A:         a,
		B:         b,
		Status:    valueobjects.MatchStatusWaiting,
		CreatedAt: time.Now().UTC(),
	}
}

// Key is the normalized identity of the edge.
func (m *Match) Key() string {
	return m.A.String() + "|" + m.B.String()
}

// MatchKey computes the normalized key for a pair of request ids.
func MatchKey(a, b valueobjects.SwapRequestID) string {
	if b.String() < a.String() {
		a, b = b, a
	}
	return a.String() + "|" + b.String()
}

// Involves reports whether the edge touches the given request.
func (m *Match) Involves(id valueobjects.SwapRequestID) bool {
	return m.A == id || m.B == id
}

// Other returns the counterpart request id for one endpoint.
func (m *Match) Other(id valueobjects.SwapRequestID) valueobjects.SwapRequestID {
	if m.A == id {
		return m.B
	}
	return m.A
}

// Finalize marks the edge agreed. Only a waiting edge can finalize.
func (m *Match) Finalize() error {
	if m.Status == valueobjects.MatchStatusAgreed {
		return nil
	}
	if m.Status != valueobjects.MatchStatusWaiting {
		return pkgerrors.NewValidationError("match cannot be finalized from status " + string(m.Status))
	}
	m.Status = valueobjects.MatchStatusAgreed
	return nil
}
