package telegram

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sahanuj/telegram-post-approve/internal/moderation"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

type fakeBot struct {
	sent     []tgbotapi.Chattable
	groups   []tgbotapi.MediaGroupConfig
	requests []tgbotapi.Chattable
	raw      map[string]tgbotapi.Params
	err      error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBot) SendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.groups = append(f.groups, cfg)
	msgs := make([]tgbotapi.Message, len(cfg.Media))
	for i := range msgs {
		msgs[i].MessageID = 100 + i
	}
	return msgs, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, f.err
}

func (f *fakeBot) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	if f.raw == nil {
		f.raw = map[string]tgbotapi.Params{}
	}
	f.raw[endpoint] = params
	return &tgbotapi.APIResponse{Ok: true}, f.err
}

func TestClient_PublishBatchCaptionOnFirst(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 0, 0)

	refs, err := c.PublishBatch(context.Background(), mainChat, []store.MediaItem{
		{Ref: "A", Kind: store.KindPhoto},
		{Ref: "B", Kind: store.KindVideo},
	}, "hi")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 100, refs[0].MessageID)

	require.Len(t, bot.groups, 1)
	media := bot.groups[0].Media
	first, ok := media[0].(tgbotapi.InputMediaPhoto)
	require.True(t, ok)
	assert.Equal(t, "hi", first.Caption)
	assert.Equal(t, tgbotapi.FileID("A"), first.Media)

	second, ok := media[1].(tgbotapi.InputMediaVideo)
	require.True(t, ok)
	assert.Empty(t, second.Caption)
}

func TestClient_PublishSingleWithControls(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 0, 0)

	controls := []moderation.Control{
		{Label: "Keep", Command: moderation.Decide{SubmissionID: 3, Index: 0, Keep: true}},
		{Label: "Remove", Command: moderation.Decide{SubmissionID: 3, Index: 0}},
		{Label: "Finalize", Command: moderation.Finalize{SubmissionID: 3}},
	}
	_, err := c.PublishSingle(context.Background(), modChat, store.MediaItem{Ref: "V", Kind: store.KindVideo}, "Item #1", controls)
	require.NoError(t, err)

	v, ok := bot.sent[0].(tgbotapi.VideoConfig)
	require.True(t, ok)
	assert.Equal(t, "Item #1", v.Caption)
	kb, ok := v.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "keep:3:0", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "finalize:3", *kb.InlineKeyboard[1][0].CallbackData)
}

func TestClient_PublishTextWithoutControls(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 0, 0)

	ref, err := c.PublishText(context.Background(), mainChat, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, moderation.MessageRef{ChatID: mainChat, MessageID: 1}, ref)

	m, ok := bot.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Nil(t, m.ReplyMarkup)
}

func TestClient_ErrorsWrapped(t *testing.T) {
	bot := &fakeBot{err: errors.New("Too Many Requests")}
	c := newClient(bot, 0, 0)

	_, err := c.PublishText(context.Background(), mainChat, "x", nil)
	assert.ErrorContains(t, err, "Too Many Requests")
	assert.Error(t, c.DeleteOriginal(context.Background(), moderation.MessageRef{ChatID: 1, MessageID: 2}))
}

func TestClient_RateLimiterHonoursContext(t *testing.T) {
	c := newClient(&fakeBot{}, 0.001, 1)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.PublishText(ctx, mainChat, "first", nil)
	require.NoError(t, err)

	cancel()
	_, err = c.PublishText(ctx, mainChat, "second", nil)
	assert.Error(t, err)
}

func TestClient_SetWebhook(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 0, 0)

	require.NoError(t, c.SetWebhook(context.Background(), "https://example.com/webhook", "s3cret"))
	p := bot.raw["setWebhook"]
	assert.Equal(t, "https://example.com/webhook", p["url"])
	assert.Equal(t, "s3cret", p["secret_token"])
	assert.Equal(t, "1", p["max_connections"])
	assert.JSONEq(t, `["message","callback_query"]`, p["allowed_updates"])
}
