package main

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Sahanuj/telegram-post-approve/internal/metrics"
)

// newMux serves metrics and health, plus the Telegram webhook when hook is
// non-nil.
func newMux(hook http.Handler, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	if hook != nil {
		mux.Handle("/webhook", hook)
	}
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path == "/webhook" {
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("Webhook request")
		}
	})
}
