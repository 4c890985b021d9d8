package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tareq-mahmood/schedulr/internal/scheduler"
)

// SchedulerHandler exposes the sweep behind a shared bearer secret, for cron
// or manual triggers alongside the in-process ticker.
type SchedulerHandler struct {
	sweeper *scheduler.Sweeper
	secret  string
	logger  *slog.Logger
}

func NewSchedulerHandler(sweeper *scheduler.Sweeper, secret string, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{sweeper: sweeper, secret: secret, logger: logger}
}

func (h *SchedulerHandler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	res, err := h.sweeper.RunOnce(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"reminders":     res.Reminders,
		"confirmations": res.Confirmations,
		"errors":        res.Errors,
	})
}

func (h *SchedulerHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}
