package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/album"
	"github.com/Sahanuj/telegram-post-approve/internal/metrics"
	"github.com/Sahanuj/telegram-post-approve/internal/moderation"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

const (
	textStarted   = "Media approval bot active."
	textWrongChat = "Actions are only accepted in the moderation chat."
)

// Intake receives accepted media items. *album.Collector satisfies it.
type Intake interface {
	Add(key string, item store.MediaItem, id album.Identity, caption string)
}

// ActionHandler applies moderator actions. *moderation.Workflow satisfies it.
type ActionHandler interface {
	Handle(ctx context.Context, a moderation.Action) moderation.Ack
}

// Messenger is the outbound surface the router needs. *Client satisfies it.
type Messenger interface {
	moderation.Publisher
	Answer(ctx context.Context, callbackID, text string) error
}

type RouterConfig struct {
	MainChatID       int64
	ModerationChatID int64
	AdminIDs         []int64
}

// Router dispatches updates. Messages are processed inline in arrival order
// so album items keep their sequence; callbacks run concurrently.
type Router struct {
	cfg      RouterConfig
	admins   map[int64]bool
	out      Messenger
	intake   Intake
	actions  ActionHandler
	metrics  *metrics.Metrics
	inflight sync.WaitGroup
}

func NewRouter(cfg RouterConfig, out Messenger, intake Intake, actions ActionHandler, m *metrics.Metrics) *Router {
	admins := make(map[int64]bool, len(cfg.AdminIDs))
	for _, id := range cfg.AdminIDs {
		admins[id] = true
	}
	return &Router{
		cfg:     cfg,
		admins:  admins,
		out:     out,
		intake:  intake,
		actions: actions,
		metrics: m,
	}
}

// Dispatch routes one update.
func (r *Router) Dispatch(ctx context.Context, u tgbotapi.Update) {
	switch {
	case u.Message != nil:
		r.handleMessage(ctx, u.Message)
	case u.CallbackQuery != nil:
		q := u.CallbackQuery
		ctx := context.WithoutCancel(ctx)
		r.inflight.Add(1)
		go func() {
			defer r.inflight.Done()
			r.handleCallback(ctx, q)
		}()
	}
}

// Wait blocks until every in-flight callback has been answered.
func (r *Router) Wait() {
	r.inflight.Wait()
}

// Run consumes updates until ctx is cancelled or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			r.Dispatch(ctx, u)
		}
	}
}

func (r *Router) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.Chat == nil {
		return
	}
	if m.IsCommand() && m.Command() == "start" {
		if _, err := r.out.PublishText(ctx, m.Chat.ID, textStarted, nil); err != nil {
			log.Warn().Err(err).Int64("chatId", m.Chat.ID).Msg("Failed to reply to /start")
		}
		return
	}
	if m.Chat.ID != r.cfg.MainChatID {
		return
	}
	if m.From == nil || m.From.IsBot {
		r.metrics.Intake("ignored_bot")
		return
	}
	if r.admins[m.From.ID] {
		r.metrics.Intake("admin_bypass")
		return
	}

	item, ok := mediaItem(m)
	if !ok {
		r.metrics.Intake("unsupported")
		return
	}

	key := ""
	if m.MediaGroupID != "" {
		key = fmt.Sprintf("%d:%s", m.Chat.ID, m.MediaGroupID)
	}
	id := album.Identity{
		OriginChatID:  m.Chat.ID,
		SubmitterID:   m.From.ID,
		SubmitterName: displayName(m.From),
	}
	r.intake.Add(key, item, id, m.Caption)
	r.metrics.Intake("accepted")

	ref := moderation.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID}
	if err := r.out.DeleteOriginal(ctx, ref); err != nil {
		log.Warn().Err(err).Int64("chatId", ref.ChatID).Int("messageId", ref.MessageID).Msg("Failed to delete original message")
	}
}

func (r *Router) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	var ack moderation.Ack
	switch {
	case q.Message == nil || q.Message.Chat == nil || q.Message.Chat.ID != r.cfg.ModerationChatID:
		ack = moderation.Ack{Status: moderation.AckInvalid, Text: textWrongChat}
	case q.From == nil:
		ack = moderation.InvalidAck()
	default:
		cmd, err := moderation.ParseCallback(q.Data)
		if err != nil {
			log.Warn().Err(err).Msg("Rejected callback payload")
			ack = moderation.InvalidAck()
			break
		}
		ack = r.actions.Handle(ctx, moderation.Action{
			Command:   cmd,
			ActorID:   q.From.ID,
			ActorName: displayName(q.From),
		})
	}

	if err := r.out.Answer(ctx, q.ID, ack.Text); err != nil {
		log.Warn().Err(err).Str("callbackId", q.ID).Msg("Failed to answer callback")
	}
}

// mediaItem extracts the photo or video reference from m. For photos the
// largest rendition is used.
func mediaItem(m *tgbotapi.Message) (store.MediaItem, bool) {
	if len(m.Photo) > 0 {
		best := m.Photo[0]
		for _, p := range m.Photo[1:] {
			if p.Width*p.Height >= best.Width*best.Height {
				best = p
			}
		}
		return store.MediaItem{Ref: best.FileID, Kind: store.KindPhoto}, true
	}
	if m.Video != nil {
		return store.MediaItem{Ref: m.Video.FileID, Kind: store.KindVideo}, true
	}
	return store.MediaItem{}, false
}

// displayName renders u the way prompts and attributions mention people.
func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return fmt.Sprintf("user %d", u.ID)
	}
	return name
}
