package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	syncx "github.com/russianmaster/russianmaster-lms/internal/sync"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

// appendEvent records e in the event log when one is configured. Failures are
// logged and never reach the client.
func appendEvent(ctx context.Context, ev syncx.Appender, typ, key string, payload any) {
	if ev == nil {
		return
	}
	e, err := syncx.NewEvent(typ, key, payload)
	if err == nil {
		err = ev.Append(ctx, e)
	}
	if err != nil {
		log.Printf("[event] %s %s: %v", typ, key, err)
	}
}
