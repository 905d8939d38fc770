package moderation

import (
	"context"

	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// MessageRef addresses one message in a chat.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Control is a named action rendered as an interactive button.
type Control struct {
	Label   string
	Command Command
}

// Publisher is the outbound side of the chat transport.
type Publisher interface {
	// DeleteOriginal removes a message. Callers treat failure as non-fatal.
	DeleteOriginal(ctx context.Context, ref MessageRef) error
	// PublishBatch sends items as one grouped post with caption on the first.
	PublishBatch(ctx context.Context, chatID int64, items []store.MediaItem, caption string) ([]MessageRef, error)
	// PublishSingle sends one item, optionally with controls attached.
	PublishSingle(ctx context.Context, chatID int64, item store.MediaItem, caption string, controls []Control) (MessageRef, error)
	// PublishText sends a text message, optionally with controls attached.
	PublishText(ctx context.Context, chatID int64, text string, controls []Control) (MessageRef, error)
}
