package handler

import (
	"net/http"

	"eabridge/src/model"

	"github.com/go-chi/chi/v5"
)

type symbolPayload struct {
	Symbol         string `json:"symbol"`
	LotSize        string `json:"lotSize"`
	Direction      string `json:"direction"`
	Platform       string `json:"platform"`
	NumberOfTrades int    `json:"numberOfTrades"`
}

func ListSymbolsHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, b.Symbols())
	}
}

// SetSymbolHandler activates a symbol in the bucket named by the path. Any entry
// for the same symbol in another bucket is replaced.
func SetSymbolHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket, ok := model.ParseBucket(chi.URLParam(r, "bucket"))
		if !ok {
			http.Error(w, "invalid bucket", http.StatusBadRequest)
			return
		}

		var payload symbolPayload
		if err := decode(r, &payload); err != nil {
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		cfg, err := b.SetSymbol(r.Context(), bucket, model.SymbolConfig{
			Symbol:         payload.Symbol,
			LotSize:        payload.LotSize,
			Direction:      payload.Direction,
			Platform:       model.Platform(payload.Platform),
			NumberOfTrades: payload.NumberOfTrades,
		})
		if err != nil {
			writeError(w, "SetSymbol", err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func RemoveSymbolHandler(b Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket, ok := model.ParseBucket(chi.URLParam(r, "bucket"))
		if !ok {
			http.Error(w, "invalid bucket", http.StatusBadRequest)
			return
		}

		removed, err := b.RemoveSymbol(r.Context(), bucket, chi.URLParam(r, "symbol"))
		if err != nil {
			writeError(w, "RemoveSymbol", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
	}
}
