package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"swapcourses-backend/application/ports"
)

const source = "swapcourses.matching"

// Notifier delivers match lifecycle notifications to an EventBridge
// bus, where a downstream rule turns them into emails. Deliveries run
// through a circuit breaker so a broken bus cannot slow down matching.
type Notifier struct {
	client       *awseventbridge.Client
	eventBusName string
	breaker      *gobreaker.CircuitBreaker
	logger       *zap.Logger
}

// NewNotifier creates an EventBridge-backed notification sink.
func NewNotifier(client *awseventbridge.Client, eventBusName string, logger *zap.Logger) ports.NotificationSink {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "eventbridge-notifier",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Notifier{
		client:       client,
		eventBusName: eventBusName,
		breaker:      breaker,
		logger:       logger,
	}
}

// PublishMatchFound emits a swap.match-found event.
func (n *Notifier) PublishMatchFound(ctx context.Context, notif ports.MatchFoundNotification) error {
	return n.publish(ctx, "swap.match-found", map[string]string{
		"requestId":       notif.RequestID.String(),
		"counterpartId":   notif.CounterpartID.String(),
		"userEmail":       notif.UserEmail,
		"offeredSlot":     notif.OfferedSlot.String(),
		"counterpartSlot": notif.CounterpartSlot.String(),
	})
}

// PublishAgreementReached emits a swap.agreement-reached event.
func (n *Notifier) PublishAgreementReached(ctx context.Context, notif ports.AgreementNotification) error {
	return n.publish(ctx, "swap.agreement-reached", map[string]string{
		"requestId":     notif.RequestID.String(),
		"counterpartId": notif.CounterpartID.String(),
		"userEmail":     notif.UserEmail,
		"offeredSlot":   notif.OfferedSlot.String(),
		"receivedSlot":  notif.ReceivedSlot.String(),
	})
}

func (n *Notifier) publish(ctx context.Context, detailType string, detail map[string]string) error {
	payload, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", detailType, err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		out, err := n.client.PutEvents(ctx, &awseventbridge.PutEventsInput{
			Entries: []types.PutEventsRequestEntry{{
				EventBusName: aws.String(n.eventBusName),
				Source:       aws.String(source),
				DetailType:   aws.String(detailType),
				Detail:       aws.String(string(payload)),
				Time:         aws.Time(time.Now().UTC()),
			}},
		})
		if err != nil {
			return nil, err
		}
		if out.FailedEntryCount > 0 {
			return nil, fmt.Errorf("eventbridge rejected %d entries", out.FailedEntryCount)
		}
		return out, nil
	})
	if err != nil {
		n.logger.Warn("notification publish failed",
			zap.String("detailType", detailType),
			zap.Error(err))
		return err
	}
	n.logger.Debug("notification published", zap.String("detailType", detailType))
	return nil
}

// NopSink drops notifications, used with the memory backend.
type NopSink struct{}

func (NopSink) PublishMatchFound(context.Context, ports.MatchFoundNotification) error { return nil }
func (NopSink) PublishAgreementReached(context.Context, ports.AgreementNotification) error {
	return nil
}
