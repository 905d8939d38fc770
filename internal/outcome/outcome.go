// Package outcome records the terminal decision for each submission and
// fans it out to optional sinks (log, EventBridge, S3 archive).
package outcome

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// Decision is the terminal state a submission reached.
type Decision string

const (
	Approved  Decision = "approved"
	Rejected  Decision = "rejected"
	Discarded Decision = "discarded"
)

// Outcome is one terminal transition.
type Outcome struct {
	EventID        string    `json:"eventId"`
	SubmissionID   int64     `json:"submissionId"`
	Decision       Decision  `json:"decision"`
	ActorID        int64     `json:"actorId"`
	ActorName      string    `json:"actorName,omitempty"`
	SubmitterID    int64     `json:"submitterId"`
	SubmitterName  string    `json:"submitterName"`
	OriginChatID   int64     `json:"originChatId"`
	GroupKey       string    `json:"groupKey,omitempty"`
	ItemsTotal     int       `json:"itemsTotal"`
	ItemsPublished int       `json:"itemsPublished"`
	SubmittedAt    time.Time `json:"submittedAt"`
	DecidedAt      time.Time `json:"decidedAt"`
}

// New builds an Outcome for sub with a fresh event id.
func New(sub *store.Submission, decision Decision, actorID int64, actorName string, published int) Outcome {
	return Outcome{
		EventID:        uuid.New().String(),
		SubmissionID:   sub.ID,
		Decision:       decision,
		ActorID:        actorID,
		ActorName:      actorName,
		SubmitterID:    sub.SubmitterID,
		SubmitterName:  sub.SubmitterName,
		OriginChatID:   sub.OriginChatID,
		GroupKey:       sub.GroupKey,
		ItemsTotal:     len(sub.Items),
		ItemsPublished: published,
		SubmittedAt:    sub.CreatedAt,
		DecidedAt:      time.Now().UTC(),
	}
}

// Sink delivers outcomes somewhere. Record must be safe for concurrent use.
type Sink interface {
	Name() string
	Record(ctx context.Context, o Outcome) error
}

// LogSink writes each outcome as a structured log event.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Record(_ context.Context, o Outcome) error {
	log.Info().
		Str("eventId", o.EventID).
		Int64("submissionId", o.SubmissionID).
		Str("decision", string(o.Decision)).
		Int64("actorId", o.ActorID).
		Int64("submitterId", o.SubmitterID).
		Int("itemsTotal", o.ItemsTotal).
		Int("itemsPublished", o.ItemsPublished).
		Dur("pending", o.DecidedAt.Sub(o.SubmittedAt)).
		Msg("Submission outcome")
	return nil
}
