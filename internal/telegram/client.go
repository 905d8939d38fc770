// Package telegram binds the approval workflow to the Telegram Bot API.
//
// Client implements moderation.Publisher on top of telegram-bot-api, with an
// outbound rate limit so bursts of prompts stay under Telegram's per-chat
// limits. Router turns incoming updates into album intake and moderator
// actions.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Sahanuj/telegram-post-approve/internal/moderation"
	"github.com/Sahanuj/telegram-post-approve/internal/store"
)

// botAPI is the subset of *tgbotapi.BotAPI used by Client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(config tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Client sends messages through the Bot API. Every call waits on a shared
// token bucket first.
type Client struct {
	api     botAPI
	limiter *rate.Limiter
}

// Compile-time interface check.
var _ moderation.Publisher = (*Client)(nil)

// NewClient wraps api. perSecond <= 0 disables throttling.
func NewClient(api *tgbotapi.BotAPI, perSecond float64, burst int) *Client {
	return newClient(api, perSecond, burst)
}

func newClient(api botAPI, perSecond float64, burst int) *Client {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{api: api, limiter: rate.NewLimiter(limit, burst)}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

func (c *Client) DeleteOriginal(ctx context.Context, ref moderation.MessageRef) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID)); err != nil {
		return fmt.Errorf("deleteMessage chat=%d msg=%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

func (c *Client) PublishBatch(ctx context.Context, chatID int64, items []store.MediaItem, caption string) ([]moderation.MessageRef, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	media := make([]any, 0, len(items))
	for i, it := range items {
		itemCaption := ""
		if i == 0 {
			itemCaption = caption
		}
		media = append(media, inputMedia(it, itemCaption))
	}

	msgs, err := c.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	if err != nil {
		return nil, fmt.Errorf("sendMediaGroup chat=%d items=%d: %w", chatID, len(items), err)
	}
	refs := make([]moderation.MessageRef, len(msgs))
	for i, m := range msgs {
		refs[i] = moderation.MessageRef{ChatID: chatID, MessageID: m.MessageID}
	}
	log.Debug().Int64("chatId", chatID).Int("items", len(items)).Msg("Media group sent")
	return refs, nil
}

func (c *Client) PublishSingle(ctx context.Context, chatID int64, item store.MediaItem, caption string, controls []moderation.Control) (moderation.MessageRef, error) {
	if err := c.wait(ctx); err != nil {
		return moderation.MessageRef{}, err
	}

	var msg tgbotapi.Chattable
	switch item.Kind {
	case store.KindVideo:
		v := tgbotapi.NewVideo(chatID, tgbotapi.FileID(item.Ref))
		v.Caption = caption
		if len(controls) > 0 {
			v.ReplyMarkup = keyboard(controls)
		}
		msg = v
	default:
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(item.Ref))
		p.Caption = caption
		if len(controls) > 0 {
			p.ReplyMarkup = keyboard(controls)
		}
		msg = p
	}

	sent, err := c.api.Send(msg)
	if err != nil {
		return moderation.MessageRef{}, fmt.Errorf("send %s chat=%d: %w", item.Kind, chatID, err)
	}
	return moderation.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (c *Client) PublishText(ctx context.Context, chatID int64, text string, controls []moderation.Control) (moderation.MessageRef, error) {
	if err := c.wait(ctx); err != nil {
		return moderation.MessageRef{}, err
	}

	m := tgbotapi.NewMessage(chatID, text)
	if len(controls) > 0 {
		m.ReplyMarkup = keyboard(controls)
	}
	sent, err := c.api.Send(m)
	if err != nil {
		return moderation.MessageRef{}, fmt.Errorf("sendMessage chat=%d: %w", chatID, err)
	}
	return moderation.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// Answer replies to a callback query with a short notification.
func (c *Client) Answer(ctx context.Context, callbackID, text string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

// SetWebhook registers url with Telegram. Updates are delivered one at a
// time so album items arrive in order, and each request carries secret in
// the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	allowed, err := json.Marshal([]string{"message", "callback_query"})
	if err != nil {
		return err
	}
	params := tgbotapi.Params{
		"url":             url,
		"max_connections": strconv.Itoa(1),
		"allowed_updates": string(allowed),
	}
	params.AddNonEmpty("secret_token", secret)

	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	log.Info().Str("url", url).Bool("secret", secret != "").Msg("Webhook registered")
	return nil
}

// DeleteWebhook removes any registered webhook so long polling can run.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	return nil
}

func inputMedia(it store.MediaItem, caption string) any {
	if it.Kind == store.KindVideo {
		v := tgbotapi.NewInputMediaVideo(tgbotapi.FileID(it.Ref))
		v.Caption = caption
		return v
	}
	p := tgbotapi.NewInputMediaPhoto(tgbotapi.FileID(it.Ref))
	p.Caption = caption
	return p
}

// keyboard renders controls as an inline keyboard, two buttons per row.
func keyboard(controls []moderation.Control) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(controls); i += 2 {
		end := min(i+2, len(controls))
		var row []tgbotapi.InlineKeyboardButton
		for _, ctl := range controls[i:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(ctl.Label, moderation.Encode(ctl.Command)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
