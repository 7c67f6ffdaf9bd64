package handler

import (
	"net/http"

	"eabridge/src/model"

	"github.com/go-chi/chi/v5"
)

type accountPayload struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Server   string `json:"server"`
}

func ListAccountsHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := b.Accounts(r.Context())
		if err != nil {
			writeError(w, "Accounts", err)
			return
		}
		writeJSON(w, http.StatusOK, accounts)
	}
}

func SetAccountHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		platform, ok := model.ParsePlatform(chi.URLParam(r, "platform"))
		if !ok {
			http.Error(w, "invalid platform", http.StatusBadRequest)
			return
		}

		var payload accountPayload
		if err := decode(r, &payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		if err := b.SetAccount(r.Context(), platform, payload.Login, payload.Password, payload.Server); err != nil {
			writeError(w, "SetAccount", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
