// Package store provides durable storage for pending media submissions.
//
// A submission is created once an album (or a single photo/video) has been
// collected from the main chat, and deleted when a moderator drives it to a
// terminal outcome. There is no update-in-place: selective review decisions
// live in the review package, so every backend only needs create, read and
// delete.
//
// Backends:
//   - MemoryStore: process-local, used by tests and --store=memory
//   - SQLiteStore: single-file database with embedded goose migrations
//   - DynamoStore: single-table DynamoDB design with an atomic id counter
//   - RedisStore: INCR-allocated ids with JSON values
//
// Every backend allocates ids monotonically and never reuses one, so a stale
// moderation button can never address a newer submission.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get and Delete when no record exists for the id.
// Callers treat it as "already handled" rather than a failure.
var ErrNotFound = errors.New("submission not found")

// PendingStore defines the persistence interface for pending submissions.
// Each method is safe for concurrent use.
type PendingStore interface {
	// Create persists the submission and returns its newly assigned id.
	// The ID field of the argument is ignored and overwritten.
	Create(ctx context.Context, sub *Submission) (int64, error)

	// Get retrieves a submission by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (*Submission, error)

	// Delete removes a submission. Returns ErrNotFound if it was already gone.
	Delete(ctx context.Context, id int64) error
}

// MediaKind distinguishes the two media types the bot accepts.
type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
)

// Valid reports whether k is one of the supported kinds.
func (k MediaKind) Valid() bool {
	return k == KindPhoto || k == KindVideo
}

// MediaItem is one photo or video inside a submission. Ref is the transport's
// opaque remote reference (a Telegram file_id).
type MediaItem struct {
	Ref  string    `json:"ref" dynamodbav:"ref"`
	Kind MediaKind `json:"kind" dynamodbav:"kind"`
}

// Submission is the durable record of one pending unit of media.
// The ID field is derived from the storage key on read and excluded from
// DynamoDB attributes on write.
type Submission struct {
	ID            int64       `json:"id" dynamodbav:"-"`
	OriginChatID  int64       `json:"originChatId" dynamodbav:"originChatId"`
	SubmitterID   int64       `json:"submitterId" dynamodbav:"submitterId"`
	SubmitterName string      `json:"submitterName" dynamodbav:"submitterName"`
	GroupKey      string      `json:"groupKey,omitempty" dynamodbav:"groupKey,omitempty"`
	Items         []MediaItem `json:"items" dynamodbav:"items"`
	Caption       string      `json:"caption,omitempty" dynamodbav:"caption,omitempty"`
	CreatedAt     time.Time   `json:"createdAt" dynamodbav:"createdAt"`
}

// IsAlbum reports whether the submission came from a multi-message burst.
func (s *Submission) IsAlbum() bool {
	return s.GroupKey != ""
}

// validate rejects records that would break the non-empty items invariant.
func validate(sub *Submission) error {
	if sub == nil {
		return errors.New("nil submission")
	}
	if len(sub.Items) == 0 {
		return errors.New("submission has no items")
	}
	for i, it := range sub.Items {
		if it.Ref == "" {
			return fmt.Errorf("item %d: empty ref", i)
		}
		if !it.Kind.Valid() {
			return fmt.Errorf("item %d: unsupported kind %q", i, it.Kind)
		}
	}
	return nil
}
