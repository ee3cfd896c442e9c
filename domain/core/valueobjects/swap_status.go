package valueobjects

import "fmt"

// SwapStatus is the lifecycle state of a swap request.
type SwapStatus string

const (
	// SwapStatusPending means no candidate match exists yet.
	SwapStatusPending SwapStatus = "pending"
	// SwapStatusWaiting means at least one candidate match exists and
	// the owner has not committed to one.
	SwapStatusWaiting SwapStatus = "waiting-for-agreement"
	// SwapStatusAgreed means the owner committed to one candidate.
	SwapStatusAgreed SwapStatus = "agreed"
)

// ParseSwapStatus parses a stored status value.
func ParseSwapStatus(s string) (SwapStatus, error) {
	switch SwapStatus(s) {
	case SwapStatusPending, SwapStatusWaiting, SwapStatusAgreed:
		return SwapStatus(s), nil
	}
	return "", fmt.Errorf("unknown swap status %q", s)
}

// swapTransitions is the authoritative transition table. agreed->pending
// exists only for the displacement path: a one-sided agree is rolled
// back when the chosen counterpart's own agree displaces this request.
// A mutually agreed pair deletes no edges, so it can never be displaced.
var swapTransitions = map[SwapStatus]map[SwapStatus]bool{
	SwapStatusPending: {SwapStatusWaiting: true},
	SwapStatusWaiting: {SwapStatusAgreed: true, SwapStatusPending: true},
	SwapStatusAgreed:  {SwapStatusPending: true},
}

// CanTransition reports whether moving from one status to another is
// allowed. Setting a status to itself is a no-op and always allowed.
func (s SwapStatus) CanTransition(to SwapStatus) bool {
	if s == to {
		return true
	}
	return swapTransitions[s][to]
}

// MatchStatus is the state of a candidate match edge between two
// reciprocal swap requests.
type MatchStatus string

const (
	// MatchStatusWaiting means the match is a candidate awaiting both
	// owners' agreement.
	MatchStatusWaiting MatchStatus = "waiting-for-agreement"
	// MatchStatusAgreed means both owners committed; terminal.
	MatchStatusAgreed MatchStatus = "agreed"
)

// ParseMatchStatus parses a stored match status value.
func ParseMatchStatus(s string) (MatchStatus, error) {
	switch MatchStatus(s) {
	case MatchStatusWaiting, MatchStatusAgreed:
		return MatchStatus(s), nil
	}
	return "", fmt.Errorf("unknown match status %q", s)
}
