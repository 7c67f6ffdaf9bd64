package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type licensePayload struct {
	LicenseKey string `json:"licenseKey"`
}

func ListEAsHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eas, err := b.ExpertAdvisors(r.Context())
		if err != nil {
			writeError(w, "ExpertAdvisors", err)
			return
		}
		writeJSON(w, http.StatusOK, eas)
	}
}

func AddEAHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload licensePayload
		if err := decode(r, &payload); err != nil || strings.TrimSpace(payload.LicenseKey) == "" {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		ea, err := b.AddLicense(r.Context(), payload.LicenseKey)
		if err != nil {
			writeError(w, "AddLicense", err)
			return
		}
		writeJSON(w, http.StatusCreated, ea)
	}
}

func RefreshEAHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ea, err := b.RefreshLicense(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, "RefreshLicense", err)
			return
		}
		writeJSON(w, http.StatusOK, ea)
	}
}

func RemoveEAHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.RemoveEA(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, "RemoveEA", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ActivateEAHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := b.SetActiveEA(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeError(w, "SetActiveEA", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
