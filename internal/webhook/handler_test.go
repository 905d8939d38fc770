package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const testSecret = "my_test_secret"

type recordingDispatcher struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (d *recordingDispatcher) Dispatch(_ context.Context, u tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.updates = append(d.updates, u)
}

func newTestHandler() (*Handler, *recordingDispatcher) {
	d := &recordingDispatcher{}
	return NewHandler(testSecret, d), d
}

const samplePayload = `{"update_id":42,"message":{"message_id":7,"chat":{"id":-100,"type":"supergroup"},"from":{"id":5,"is_bot":false,"first_name":"A"},"media_group_id":"g1","photo":[{"file_id":"F","file_unique_id":"u","width":10,"height":10}]}}`

func post(h http.Handler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDelivery_ValidSecret(t *testing.T) {
	h, d := newTestHandler()
	rr := post(h, testSecret, samplePayload)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if len(d.updates) != 1 {
		t.Fatalf("expected 1 dispatched update, got %d", len(d.updates))
	}
	u := d.updates[0]
	if u.UpdateID != 42 {
		t.Errorf("expected update_id 42, got %d", u.UpdateID)
	}
	if u.Message == nil || u.Message.MediaGroupID != "g1" || len(u.Message.Photo) != 1 {
		t.Errorf("message not decoded: %+v", u.Message)
	}
}

func TestDelivery_CallbackQuery(t *testing.T) {
	h, d := newTestHandler()
	body := `{"update_id":43,"callback_query":{"id":"cb","from":{"id":9,"is_bot":false,"first_name":"M"},"data":"approve_all:3"}}`
	rr := post(h, testSecret, body)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if d.updates[0].CallbackQuery == nil || d.updates[0].CallbackQuery.Data != "approve_all:3" {
		t.Errorf("callback not decoded: %+v", d.updates[0].CallbackQuery)
	}
}

func TestDelivery_WrongSecret(t *testing.T) {
	h, d := newTestHandler()
	rr := post(h, "wrong", samplePayload)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
	if len(d.updates) != 0 {
		t.Errorf("expected no dispatch, got %d", len(d.updates))
	}
}

func TestDelivery_MissingSecret(t *testing.T) {
	h, _ := newTestHandler()
	rr := post(h, "", samplePayload)

	if rr.Code != http.StatusForbidden {
		t.Errorf("expected status 403, got %d", rr.Code)
	}
}

func TestDelivery_NoSecretConfigured(t *testing.T) {
	d := &recordingDispatcher{}
	h := NewHandler("", d)
	rr := post(h, "", samplePayload)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if len(d.updates) != 1 {
		t.Errorf("expected 1 dispatched update, got %d", len(d.updates))
	}
}

func TestDelivery_EmptyBody(t *testing.T) {
	h, _ := newTestHandler()
	rr := post(h, testSecret, "")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestDelivery_MalformedJSON(t *testing.T) {
	h, d := newTestHandler()
	rr := post(h, testSecret, `{"update_id":`)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if len(d.updates) != 0 {
		t.Errorf("expected no dispatch, got %d", len(d.updates))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler()
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/webhook", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", method, rr.Code)
		}
	}
}
