package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/album"
	"github.com/Sahanuj/telegram-post-approve/internal/keylock"
	"github.com/Sahanuj/telegram-post-approve/internal/metrics"
	"github.com/Sahanuj/telegram-post-approve/internal/outcome"
	"github.com/Sahanuj/telegram-post-approve/internal/review"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// Status is the workflow state of a submission. It is derived from the
// store and the review tracker rather than persisted.
type Status int

const (
	StatusForwarded Status = iota
	StatusSelectiveReview
	StatusFinalizing
	StatusTerminal
)

func (s Status) String() string {
	switch s {
	case StatusForwarded:
		return "forwarded"
	case StatusSelectiveReview:
		return "selective_review"
	case StatusFinalizing:
		return "finalizing"
	case StatusTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Config holds the workflow's chat routing and policy settings.
type Config struct {
	// ModerationChatID receives forwarded submissions and all prompts.
	ModerationChatID int64
	// NotifyRejections posts a notice in the origin chat on RejectAll.
	NotifyRejections bool
	// OutcomeTimeout bounds each outcome sink delivery.
	OutcomeTimeout time.Duration
}

// Option configures a Workflow.
type Option func(*Workflow)

func WithOutcomeSinks(sinks ...outcome.Sink) Option {
	return func(w *Workflow) { w.sinks = append(w.sinks, sinks...) }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// Workflow drives submissions from intake to a terminal outcome. Actions on
// the same submission id are serialized; different ids run in parallel.
type Workflow struct {
	cfg     Config
	store   store.PendingStore
	tracker *review.Tracker
	pub     Publisher
	locks   *keylock.Map[int64]
	sinks   []outcome.Sink
	metrics *metrics.Metrics
	pending sync.WaitGroup
}

func New(cfg Config, st store.PendingStore, tr *review.Tracker, pub Publisher, opts ...Option) *Workflow {
	if cfg.OutcomeTimeout <= 0 {
		cfg.OutcomeTimeout = 10 * time.Second
	}
	w := &Workflow{
		cfg:     cfg,
		store:   st,
		tracker: tr,
		pub:     pub,
		locks:   keylock.New[int64](),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// SubmitBatch converts a flushed album batch into a submission and submits it.
func (w *Workflow) SubmitBatch(ctx context.Context, b album.Batch) (int64, error) {
	return w.Submit(ctx, &store.Submission{
		OriginChatID:  b.Identity.OriginChatID,
		SubmitterID:   b.Identity.SubmitterID,
		SubmitterName: b.Identity.SubmitterName,
		GroupKey:      b.GroupKey,
		Items:         b.Items,
		Caption:       b.Caption,
	})
}

// Submit persists sub, forwards its media to the moderation chat and posts
// the control prompt. If the prompt cannot be sent the record is removed,
// since no moderator could act on it.
func (w *Workflow) Submit(ctx context.Context, sub *store.Submission) (int64, error) {
	id, err := w.store.Create(ctx, sub)
	if err != nil {
		return 0, fmt.Errorf("create submission: %w", err)
	}
	w.metrics.SubmissionCreated(len(sub.Items))

	if err := w.forward(ctx, sub); err != nil {
		log.Warn().Err(err).Int64("submissionId", id).Msg("Failed to forward media to moderation chat")
	}

	controls := []Control{
		{Label: "✅ Approve all", Command: ApproveAll{SubmissionID: id}},
		{Label: "❌ Reject all", Command: RejectAll{SubmissionID: id}},
		{Label: "✂ Approve selectively", Command: SelectivelyApprove{SubmissionID: id}},
	}
	text := fmt.Sprintf("New submission from %s (id:%d)", sub.SubmitterName, id)
	if _, err := w.publishText(ctx, "prompt", w.cfg.ModerationChatID, text, controls); err != nil {
		if derr := w.store.Delete(ctx, id); derr != nil {
			log.Error().Err(derr).Int64("submissionId", id).Msg("Failed to remove unprompted submission")
		}
		return 0, &PublishError{Op: "prompt", SubmissionID: id, Err: err}
	}

	log.Info().
		Int64("submissionId", id).
		Int64("submitterId", sub.SubmitterID).
		Str("groupKey", sub.GroupKey).
		Int("items", len(sub.Items)).
		Msg("Submission sent for moderation")
	return id, nil
}

func (w *Workflow) forward(ctx context.Context, sub *store.Submission) error {
	if len(sub.Items) > 1 {
		_, err := w.publishBatch(ctx, "forward", w.cfg.ModerationChatID, sub.Items, sub.Caption)
		return err
	}
	_, err := w.publishSingle(ctx, "forward", w.cfg.ModerationChatID, sub.Items[0], sub.Caption, nil)
	return err
}

// Status reports the derived workflow state of id. Unknown ids are terminal.
func (w *Workflow) Status(ctx context.Context, id int64) (Status, error) {
	sub, err := w.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return StatusTerminal, nil
	}
	if err != nil {
		return 0, err
	}
	switch {
	case w.tracker.Reviewing(id) && w.tracker.IsComplete(id, len(sub.Items)):
		return StatusFinalizing, nil
	case w.tracker.Reviewing(id):
		return StatusSelectiveReview, nil
	default:
		return StatusForwarded, nil
	}
}

// Handle applies a moderator action and returns the acknowledgement to show
// the moderator. It never returns without an Ack.
func (w *Workflow) Handle(ctx context.Context, a Action) Ack {
	if a.Command == nil {
		return invalid(textInvalid)
	}
	id := a.Command.Target()
	start := time.Now()

	unlock := w.locks.Lock(id)
	ack := w.dispatch(ctx, a)
	unlock()

	w.metrics.Action(a.Command.Name(), ack.Status.String())
	log.Info().
		Int64("submissionId", id).
		Str("action", a.Command.Name()).
		Int64("actorId", a.ActorID).
		Str("ack", ack.Status.String()).
		Dur("duration", time.Since(start)).
		Msg("Moderator action handled")
	return ack
}

func (w *Workflow) dispatch(ctx context.Context, a Action) Ack {
	id := a.Command.Target()
	sub, err := w.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return stale()
	}
	if err != nil {
		log.Error().Err(err).Int64("submissionId", id).Msg("Failed to load submission")
		return failed("Storage unavailable, try again.")
	}

	switch c := a.Command.(type) {
	case ApproveAll:
		return w.approveAll(ctx, sub, a)
	case RejectAll:
		return w.rejectAll(ctx, sub, a)
	case SelectivelyApprove:
		return w.startReview(ctx, sub)
	case Decide:
		return w.decide(ctx, sub, c)
	case Finalize:
		return w.finalize(ctx, sub, a)
	default:
		return invalid(textInvalid)
	}
}

func (w *Workflow) approveAll(ctx context.Context, sub *store.Submission, a Action) Ack {
	if err := w.republish(ctx, sub, sub.Items); err != nil {
		log.Error().Err(err).Int64("submissionId", sub.ID).Msg("Republish failed")
		return failed(textRepostFailed)
	}
	w.terminate(ctx, sub, outcome.Approved, a, len(sub.Items))
	return ok(textApproved)
}

func (w *Workflow) rejectAll(ctx context.Context, sub *store.Submission, a Action) Ack {
	if w.cfg.NotifyRejections {
		text := fmt.Sprintf("❌ Media from %s was rejected by admins.", sub.SubmitterName)
		if _, err := w.publishText(ctx, "notice", sub.OriginChatID, text, nil); err != nil {
			log.Warn().Err(err).Int64("submissionId", sub.ID).Msg("Failed to post rejection notice")
		}
	}
	w.terminate(ctx, sub, outcome.Rejected, a, 0)
	return ok(textRejected)
}

func (w *Workflow) startReview(ctx context.Context, sub *store.Submission) Ack {
	w.tracker.StartReview(sub.ID)

	sent := 0
	for i, item := range sub.Items {
		controls := []Control{
			{Label: "✅ Keep", Command: Decide{SubmissionID: sub.ID, Index: i, Keep: true}},
			{Label: "❌ Remove", Command: Decide{SubmissionID: sub.ID, Index: i, Keep: false}},
		}
		caption := fmt.Sprintf("Item #%d", i+1)
		if _, err := w.publishSingle(ctx, "review_item", w.cfg.ModerationChatID, item, caption, controls); err != nil {
			log.Warn().Err(err).Int64("submissionId", sub.ID).Int("index", i).Msg("Failed to send review prompt")
			continue
		}
		sent++
	}

	if sent == 0 {
		w.tracker.Clear(sub.ID)
		return failed(textPromptFailed)
	}
	return ok(textSelectiveSent)
}

func (w *Workflow) decide(ctx context.Context, sub *store.Submission, c Decide) Ack {
	n := len(sub.Items)
	if c.Index >= n {
		return stale()
	}

	wasComplete := w.tracker.Reviewing(sub.ID) && w.tracker.IsComplete(sub.ID, n)
	w.tracker.Decide(sub.ID, c.Index, c.Keep)

	if !wasComplete && w.tracker.IsComplete(sub.ID, n) {
		controls := []Control{{Label: "✅ Finalize and post approved", Command: Finalize{SubmissionID: sub.ID}}}
		text := fmt.Sprintf("All items reviewed for submission %d. Finalize?", sub.ID)
		if _, err := w.publishText(ctx, "finalize_prompt", w.cfg.ModerationChatID, text, controls); err != nil {
			// Only this index can have completed the set, so undoing it
			// lets the next click retry the prompt.
			w.tracker.Undecide(sub.ID, c.Index)
			log.Warn().Err(err).Int64("submissionId", sub.ID).Msg("Failed to send finalize prompt")
			return failed(textPromptFailed)
		}
	}

	verdict := "remove"
	if c.Keep {
		verdict = "keep"
	}
	return ok(fmt.Sprintf("Item #%d marked %s.", c.Index+1, verdict))
}

func (w *Workflow) finalize(ctx context.Context, sub *store.Submission, a Action) Ack {
	if !w.tracker.Reviewing(sub.ID) {
		return invalid(textNotReviewing)
	}

	kept := w.tracker.Resolve(sub.ID, len(sub.Items))
	if len(kept) == 0 {
		w.terminate(ctx, sub, outcome.Discarded, a, 0)
		return ok(textNothingKept)
	}

	items := make([]store.MediaItem, 0, len(kept))
	for _, i := range kept {
		items = append(items, sub.Items[i])
	}
	if err := w.republish(ctx, sub, items); err != nil {
		log.Error().Err(err).Int64("submissionId", sub.ID).Msg("Republish of selection failed")
		return failed(textRepostFailed)
	}
	w.terminate(ctx, sub, outcome.Approved, a, len(items))
	return ok(textSelectionPosted)
}

// republish posts items to the origin chat with the caption on the first
// item, then the attribution line. Attribution failures are logged only:
// the media is already public and a retry would post it twice.
func (w *Workflow) republish(ctx context.Context, sub *store.Submission, items []store.MediaItem) error {
	var err error
	if len(items) > 1 {
		_, err = w.publishBatch(ctx, "republish", sub.OriginChatID, items, sub.Caption)
	} else {
		_, err = w.publishSingle(ctx, "republish", sub.OriginChatID, items[0], sub.Caption, nil)
	}
	if err != nil {
		return &PublishError{Op: "republish", SubmissionID: sub.ID, Err: err}
	}

	if _, err := w.publishText(ctx, "attribution", sub.OriginChatID, attribution(sub), nil); err != nil {
		log.Warn().Err(err).Int64("submissionId", sub.ID).Msg("Failed to post attribution")
	}
	return nil
}

func attribution(sub *store.Submission) string {
	if sub.IsAlbum() {
		return "📌 Album submitted by " + sub.SubmitterName
	}
	return "📌 Submitted by " + sub.SubmitterName
}

// terminate removes every trace of the submission and records the outcome.
func (w *Workflow) terminate(ctx context.Context, sub *store.Submission, d outcome.Decision, a Action, published int) {
	if err := w.store.Delete(ctx, sub.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Int64("submissionId", sub.ID).Msg("Failed to delete submission")
	}
	w.tracker.Clear(sub.ID)
	w.record(ctx, outcome.New(sub, d, a.ActorID, a.ActorName, published))
}

// record delivers o to every sink in the background.
func (w *Workflow) record(ctx context.Context, o outcome.Outcome) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range w.sinks {
		w.pending.Add(1)
		go func() {
			defer w.pending.Done()
			ctx, cancel := context.WithTimeout(ctx, w.cfg.OutcomeTimeout)
			defer cancel()
			if err := sink.Record(ctx, o); err != nil {
				w.metrics.OutcomeFailure(sink.Name())
				log.Warn().Err(err).Str("sink", sink.Name()).Int64("submissionId", o.SubmissionID).Msg("Outcome delivery failed")
			}
		}()
	}
}

// Wait blocks until all in-flight outcome deliveries finish.
func (w *Workflow) Wait() {
	w.pending.Wait()
}

func (w *Workflow) publishBatch(ctx context.Context, op string, chatID int64, items []store.MediaItem, caption string) ([]MessageRef, error) {
	start := time.Now()
	refs, err := w.pub.PublishBatch(ctx, chatID, items, caption)
	w.observe(op, start, err)
	return refs, err
}

func (w *Workflow) publishSingle(ctx context.Context, op string, chatID int64, item store.MediaItem, caption string, controls []Control) (MessageRef, error) {
	start := time.Now()
	ref, err := w.pub.PublishSingle(ctx, chatID, item, caption, controls)
	w.observe(op, start, err)
	return ref, err
}

func (w *Workflow) publishText(ctx context.Context, op string, chatID int64, text string, controls []Control) (MessageRef, error) {
	start := time.Now()
	ref, err := w.pub.PublishText(ctx, chatID, text, controls)
	w.observe(op, start, err)
	return ref, err
}

func (w *Workflow) observe(op string, start time.Time, err error) {
	w.metrics.PublishLatency(op, time.Since(start).Seconds())
	if err != nil {
		w.metrics.PublishFailure(op)
	}
}
