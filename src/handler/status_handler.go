package handler

import (
	"net/http"
	"strconv"
)

type botPayload struct {
	Active *bool `json:"active"`
}

func StatusHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := b.Status(r.Context())
		if err != nil {
			writeError(w, "Status", err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func SetBotHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload botPayload
		if err := decode(r, &payload); err != nil || payload.Active == nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		if err := b.SetBotActive(r.Context(), *payload.Active); err != nil {
			writeError(w, "SetBotActive", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"active": *payload.Active})
	}
}

func CancelDispatchHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cancelled, err := b.CancelDispatch(r.Context())
		if err != nil {
			writeError(w, "CancelDispatch", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
	}
}

func SignalLogHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := b.SignalLog(r.Context())
		if err != nil {
			writeError(w, "SignalLog", err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

const (
	defaultExecutionsLimit = 50
	maxExecutionsLimit     = 500
)

func ExecutionsHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultExecutionsLimit
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(parsed, maxExecutionsLimit)
		}

		logs, err := b.Executions(r.Context(), limit)
		if err != nil {
			writeError(w, "Executions", err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}
