package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahanuj/telegram-post-approve/internal/album"
	"github.com/Sahanuj/telegram-post-approve/internal/moderation"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

const (
	mainChat = int64(-100)
	modChat  = int64(-200)
	adminID  = int64(1)
)

type added struct {
	key     string
	item    store.MediaItem
	id      album.Identity
	caption string
}

type fakeIntake struct {
	mu    sync.Mutex
	items []added
}

func (f *fakeIntake) Add(key string, item store.MediaItem, id album.Identity, caption string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, added{key, item, id, caption})
}

type fakeActions struct {
	mu      sync.Mutex
	actions []moderation.Action
	ack     moderation.Ack
}

func (f *fakeActions) Handle(_ context.Context, a moderation.Action) moderation.Ack {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return f.ack
}

type fakeMessenger struct {
	mu        sync.Mutex
	deleted   []moderation.MessageRef
	texts     []string
	answers   map[string]string
	deleteErr error
}

func (f *fakeMessenger) DeleteOriginal(_ context.Context, ref moderation.MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return f.deleteErr
}

func (f *fakeMessenger) PublishBatch(context.Context, int64, []store.MediaItem, string) ([]moderation.MessageRef, error) {
	return nil, nil
}

func (f *fakeMessenger) PublishSingle(context.Context, int64, store.MediaItem, string, []moderation.Control) (moderation.MessageRef, error) {
	return moderation.MessageRef{}, nil
}

func (f *fakeMessenger) PublishText(_ context.Context, _ int64, text string, _ []moderation.Control) (moderation.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return moderation.MessageRef{}, nil
}

func (f *fakeMessenger) Answer(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answers == nil {
		f.answers = map[string]string{}
	}
	f.answers[id] = text
	return nil
}

type routerHarness struct {
	r       *Router
	out     *fakeMessenger
	intake  *fakeIntake
	actions *fakeActions
}

func newRouterHarness() *routerHarness {
	h := &routerHarness{
		out:     &fakeMessenger{},
		intake:  &fakeIntake{},
		actions: &fakeActions{ack: moderation.Ack{Status: moderation.AckOK, Text: "done"}},
	}
	h.r = NewRouter(RouterConfig{MainChatID: mainChat, ModerationChatID: modChat, AdminIDs: []int64{adminID}},
		h.out, h.intake, h.actions, nil)
	return h
}

func photoMessage(chat int64, from *tgbotapi.User, group, caption string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID:    10,
		Chat:         &tgbotapi.Chat{ID: chat},
		From:         from,
		MediaGroupID: group,
		Caption:      caption,
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}
}

var user = &tgbotapi.User{ID: 7, UserName: "alice"}

func TestRouter_AlbumPhotoAccepted(t *testing.T) {
	h := newRouterHarness()
	h.r.Dispatch(context.Background(), tgbotapi.Update{Message: photoMessage(mainChat, user, "555", "hi")})

	require.Len(t, h.intake.items, 1)
	got := h.intake.items[0]
	assert.Equal(t, "-100:555", got.key)
	assert.Equal(t, store.MediaItem{Ref: "large", Kind: store.KindPhoto}, got.item)
	assert.Equal(t, album.Identity{OriginChatID: mainChat, SubmitterID: 7, SubmitterName: "@alice"}, got.id)
	assert.Equal(t, "hi", got.caption)
	assert.Equal(t, []moderation.MessageRef{{ChatID: mainChat, MessageID: 10}}, h.out.deleted)
}

func TestRouter_SingleVideoHasEmptyKey(t *testing.T) {
	h := newRouterHarness()
	m := &tgbotapi.Message{
		MessageID: 11,
		Chat:      &tgbotapi.Chat{ID: mainChat},
		From:      &tgbotapi.User{ID: 8, FirstName: "Bob", LastName: "Ross"},
		Video:     &tgbotapi.Video{FileID: "vid"},
	}
	h.r.Dispatch(context.Background(), tgbotapi.Update{Message: m})

	require.Len(t, h.intake.items, 1)
	assert.Empty(t, h.intake.items[0].key)
	assert.Equal(t, store.KindVideo, h.intake.items[0].item.Kind)
	assert.Equal(t, "Bob Ross", h.intake.items[0].id.SubmitterName)
}

func TestRouter_DeleteFailureIsNotFatal(t *testing.T) {
	h := newRouterHarness()
	h.out.deleteErr = errors.New("not enough rights")
	h.r.Dispatch(context.Background(), tgbotapi.Update{Message: photoMessage(mainChat, user, "", "")})
	assert.Len(t, h.intake.items, 1)
}

func TestRouter_IgnoredMessages(t *testing.T) {
	h := newRouterHarness()
	ctx := context.Background()

	h.r.Dispatch(ctx, tgbotapi.Update{Message: photoMessage(modChat, user, "", "")})
	h.r.Dispatch(ctx, tgbotapi.Update{Message: photoMessage(mainChat, &tgbotapi.User{ID: 9, IsBot: true}, "", "")})
	h.r.Dispatch(ctx, tgbotapi.Update{Message: photoMessage(mainChat, &tgbotapi.User{ID: adminID}, "", "")})
	h.r.Dispatch(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: mainChat}, From: user, Text: "hello"}})

	assert.Empty(t, h.intake.items)
	assert.Empty(t, h.out.deleted, "ignored messages are left alone")
}

func TestRouter_StartCommand(t *testing.T) {
	h := newRouterHarness()
	m := &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 555},
		From:     user,
		Text:     "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}
	h.r.Dispatch(context.Background(), tgbotapi.Update{Message: m})
	assert.Equal(t, []string{textStarted}, h.out.texts)
}

func callback(chat int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    &tgbotapi.User{ID: 99, UserName: "mod"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chat}},
		Data:    data,
	}}
}

func TestRouter_CallbackDispatched(t *testing.T) {
	h := newRouterHarness()
	h.r.Dispatch(context.Background(), callback(modChat, "keep:12:1"))
	h.r.Wait()

	require.Len(t, h.actions.actions, 1)
	a := h.actions.actions[0]
	assert.Equal(t, moderation.Decide{SubmissionID: 12, Index: 1, Keep: true}, a.Command)
	assert.Equal(t, int64(99), a.ActorID)
	assert.Equal(t, "@mod", a.ActorName)
	assert.Equal(t, "done", h.out.answers["cb1"])
}

func TestRouter_CallbackFromWrongChat(t *testing.T) {
	h := newRouterHarness()
	h.r.Dispatch(context.Background(), callback(mainChat, "approve_all:1"))
	h.r.Wait()

	assert.Empty(t, h.actions.actions)
	assert.Equal(t, textWrongChat, h.out.answers["cb1"])
}

func TestRouter_MalformedCallbackAnswered(t *testing.T) {
	h := newRouterHarness()
	h.r.Dispatch(context.Background(), callback(modChat, "approve_all:nope"))
	h.r.Wait()

	assert.Empty(t, h.actions.actions)
	assert.Equal(t, moderation.InvalidAck().Text, h.out.answers["cb1"])
}

func TestRouter_RunStopsOnClose(t *testing.T) {
	h := newRouterHarness()
	ch := make(chan tgbotapi.Update, 2)
	ch <- tgbotapi.Update{Message: photoMessage(mainChat, user, "g", "")}
	ch <- tgbotapi.Update{Message: photoMessage(mainChat, user, "g", "")}
	close(ch)

	h.r.Run(context.Background(), ch)
	assert.Len(t, h.intake.items, 2)
}
