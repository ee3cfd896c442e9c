package ports

import (
	"context"

	"swapcourses-backend/domain/core/valueobjects"
)

// MatchFoundNotification tells one party that a reciprocal counterpart
// appeared for their request.
type MatchFoundNotification struct {
	RequestID       valueobjects.SwapRequestID
	CounterpartID   valueobjects.SwapRequestID
	UserEmail       string
	OfferedSlot     valueobjects.TimeslotID
	CounterpartSlot valueobjects.TimeslotID
}

// AgreementNotification tells one party that a swap became final.
type AgreementNotification struct {
	RequestID     valueobjects.SwapRequestID
	CounterpartID valueobjects.SwapRequestID
	UserEmail     string
	OfferedSlot   valueobjects.TimeslotID
	ReceivedSlot  valueobjects.TimeslotID
}

// NotificationSink delivers match lifecycle notifications. Delivery is
// best effort; matching never fails on a sink error.
type NotificationSink interface {
	PublishMatchFound(ctx context.Context, n MatchFoundNotification) error
	PublishAgreementReached(ctx context.Context, n AgreementNotification) error
}
