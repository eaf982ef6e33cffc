package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"govor-biljaka/capture"
	"govor-biljaka/i18n"
	"govor-biljaka/storage"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type notFoundResponse struct {
	Error     string `json:"error"`
	Back      string `json:"back"`
	BackLabel string `json:"backLabel"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, lang i18n.Lang, key i18n.Key) {
	respondJSON(w, status, errorResponse{Error: i18n.T(lang, key)})
}

// respondFailure maps domain errors to a status and localized message.
// Anything unrecognized is a 500 whose details carry the raw error, with
// fallback naming the operation that failed.
func (h *Handlers) respondFailure(w http.ResponseWriter, r *http.Request, lang i18n.Lang, err error, fallback i18n.Key) {
	switch {
	case errors.Is(err, capture.ErrImageRequired):
		respondError(w, http.StatusBadRequest, lang, i18n.ImageRequired)
	case errors.Is(err, capture.ErrInvalidImage):
		respondError(w, http.StatusBadRequest, lang, i18n.InvalidImage)
	case errors.Is(err, capture.ErrImageTooLarge):
		respondError(w, http.StatusRequestEntityTooLarge, lang, i18n.ImageTooLarge)
	case errors.Is(err, capture.ErrInvalidLocation):
		respondError(w, http.StatusBadRequest, lang, i18n.InvalidLocation)
	case errors.Is(err, capture.ErrInvalidTimestamp):
		respondError(w, http.StatusBadRequest, lang, i18n.InvalidRequest)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, lang, i18n.ObservationAbsent)
	default:
		h.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   i18n.T(lang, fallback),
			Details: err.Error(),
		})
	}
}
