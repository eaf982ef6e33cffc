package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"govor-biljaka/catalog"
	"govor-biljaka/config"
	"govor-biljaka/i18n"
	"govor-biljaka/observation"
)

const maxRequestBytes = 20 << 20

type Handlers struct {
	Observations *observation.Service
	Catalog      *catalog.Catalog
	Auth         config.AuthConfig
	DefaultLang  i18n.Lang
	Log          *zap.Logger
}

// Router wires every route together with logging, panic recovery and CORS.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(
		func(next http.Handler) http.Handler { return RecoveryMiddleware(h.Log, next) },
		func(next http.Handler) http.Handler { return RequestLoggerMiddleware(h.Log, next) },
		CORSMiddleware,
	)

	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/plant-observations", h.handleCreateObservation).Methods(http.MethodPost)
	api.HandleFunc("/plant-observations", h.handleListObservations).Methods(http.MethodGet)
	api.HandleFunc("/plant-observations/{id}", h.handleGetObservation).Methods(http.MethodGet)
	api.HandleFunc("/plant-observations/{id}/image", h.handleObservationImage).Methods(http.MethodGet)
	api.HandleFunc("/plant-observations/{id}", h.authMiddleware(h.handleDeleteObservation)).Methods(http.MethodDelete)
	api.HandleFunc("/observations/map", h.handleObservationMap).Methods(http.MethodGet)

	api.HandleFunc("/plants", h.handleListPlants).Methods(http.MethodGet)
	api.HandleFunc("/plants/{id}", h.handleGetPlant).Methods(http.MethodGet)
	api.HandleFunc("/plants/{id}/map", h.handlePlantMap).Methods(http.MethodGet)

	api.HandleFunc("/login", h.handleLogin).Methods(http.MethodPost)
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(handlePreflight)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) lang(r *http.Request, explicit string) i18n.Lang {
	if explicit == "" {
		explicit = r.URL.Query().Get("lang")
	}
	return i18n.Negotiate(explicit, r.Header.Get("Accept-Language"), h.DefaultLang)
}
