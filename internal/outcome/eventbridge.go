package outcome

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"
)

const (
	eventSource     = "telegram-post-approve"
	eventDetailType = "SubmissionOutcome"
)

type eventBridgeAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeSink publishes each outcome as an EventBridge event.
type EventBridgeSink struct {
	client  eventBridgeAPI
	busName string
}

// NewEventBridgeSink targets busName; an empty name uses the default bus.
func NewEventBridgeSink(client *eventbridge.Client, busName string) *EventBridgeSink {
	return &EventBridgeSink{client: client, busName: busName}
}

func (s *EventBridgeSink) Name() string { return "eventbridge" }

func (s *EventBridgeSink) Record(ctx context.Context, o Outcome) error {
	detail, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(eventSource),
		DetailType: aws.String(eventDetailType),
		Detail:     aws.String(string(detail)),
	}
	if s.busName != "" {
		entry.EventBusName = aws.String(s.busName)
	}

	result, err := s.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
	}

	log.Debug().Int64("submissionId", o.SubmissionID).Str("eventId", o.EventID).Msg("Outcome emitted to EventBridge")
	return nil
}
