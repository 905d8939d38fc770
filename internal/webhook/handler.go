// Package webhook provides an HTTP handler for Telegram Bot API webhook
// deliveries.
//
// Telegram POSTs one JSON-encoded Update per request. When a secret token
// was supplied to setWebhook, every delivery carries it in the
// X-Telegram-Bot-Api-Secret-Token header and requests without a matching
// value are refused.
//
// The handler returns only after the update has been dispatched. Combined
// with max_connections=1 on the webhook registration this keeps the items of
// an album flowing into intake in the order Telegram sent them.
//
// Reference: https://core.telegram.org/bots/api#setwebhook
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// maxBodySize is the maximum allowed request body size (1 MB).
// A single update is a few kilobytes even with long captions.
const maxBodySize = 1 << 20 // 1 MB

// SecretHeader is the header Telegram uses to echo the webhook secret token.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher consumes decoded updates. *telegram.Router satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, u tgbotapi.Update)
}

// Handler handles Telegram webhook deliveries.
type Handler struct {
	secret     string
	dispatcher Dispatcher
}

// NewHandler creates a webhook handler.
//
// secret must equal the secret_token passed to setWebhook. An empty secret
// disables the header check.
func NewHandler(secret string, d Dispatcher) *Handler {
	return &Handler{
		secret:     secret,
		dispatcher: d,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.verifySecret(r.Header.Get(SecretHeader)) {
		log.Warn().Str("remoteAddr", r.RemoteAddr).Msg("Webhook delivery: invalid secret token")
		http.Error(w, "invalid secret token", http.StatusForbidden)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error().Err(err).Msg("Webhook delivery: failed to read body")
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(body) == 0 {
		log.Warn().Msg("Webhook delivery: empty body")
		http.Error(w, "empty body", http.StatusBadRequest)
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		log.Warn().Err(err).Int("bodySize", len(body)).Msg("Webhook delivery: malformed update")
		http.Error(w, "malformed update", http.StatusBadRequest)
		return
	}

	log.Debug().
		Int("updateId", update.UpdateID).
		Bool("message", update.Message != nil).
		Bool("callback", update.CallbackQuery != nil).
		Msg("Webhook update received")

	h.dispatcher.Dispatch(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

// verifySecret compares the received header in constant time.
func (h *Handler) verifySecret(received string) bool {
	if h.secret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(h.secret)) == 1
}
