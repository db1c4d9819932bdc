package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/nhle/mailledger/internal/logger"
	"github.com/nhle/mailledger/internal/mail"
	"github.com/nhle/mailledger/internal/model"
	appsync "github.com/nhle/mailledger/internal/sync"
)

// Syncer runs a sync pass.
type Syncer interface {
	Sync(ctx context.Context, t model.AccountType, delta bool) (appsync.Result, error)
}

// WatcherStatus reports the mailbox watcher's connection state.
type WatcherStatus interface {
	State() mail.State
	Total() uint32
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	syncer  Syncer
	watcher WatcherStatus
	log     zerolog.Logger
}

// NewHandler creates a Handler. watcher may be nil when no watcher runs.
func NewHandler(syncer Syncer, watcher WatcherStatus, log zerolog.Logger) *Handler {
	return &Handler{
		syncer:  syncer,
		watcher: watcher,
		log:     logger.Component(log, "api"),
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Watcher  string `json:"watcher,omitempty"`
	Messages uint32 `json:"messages,omitempty"`
}

// Health reports ok while the watcher holds a live subscription.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	if h.watcher == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	state := h.watcher.State()
	resp := HealthResponse{Status: "ok", Watcher: state.String(), Messages: h.watcher.Total()}
	status := http.StatusOK
	if state != mail.StateSubscribed {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Sync runs a sync for the account type in the path. The delta query
// parameter defaults to true.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	t := model.AccountType(strings.ToUpper(chi.URLParam(r, "type")))

	delta := true
	if v := r.URL.Query().Get("delta"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid delta parameter", http.StatusBadRequest)
			return
		}
		delta = parsed
	}

	// A pass runs to completion even if the client goes away.
	res, err := h.syncer.Sync(context.WithoutCancel(r.Context()), t, delta)
	if err != nil {
		if errors.Is(err, appsync.ErrUnsupportedType) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("type", string(t)).Msg("manual sync failed")
		http.Error(w, "sync failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// writeJSON is a helper to write JSON responses.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
