package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"govor-biljaka/geo"
	"govor-biljaka/i18n"
	"govor-biljaka/model"
)

// collectionPath is the front end's catalog route, offered as the way back
// from an unknown plant.
const collectionPath = "/zbirka"

func (h *Handlers) handleListPlants(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.Search(r.URL.Query().Get("q")))
}

func (h *Handlers) handleGetPlant(w http.ResponseWriter, r *http.Request) {
	plant, ok := h.plant(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, plant)
}

func (h *Handlers) handlePlantMap(w http.ResponseWriter, r *http.Request) {
	plant, ok := h.plant(w, r)
	if !ok {
		return
	}
	selected := -1
	if v := r.URL.Query().Get("selected"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(plant.Locations) {
			selected = n
		}
	}
	respondJSON(w, http.StatusOK, geo.BuildMap(geo.PlantMarkers(plant.Locations), selected))
}

// plant resolves the {id} route variable, answering 404 itself when the id
// is malformed or unknown.
func (h *Handlers) plant(w http.ResponseWriter, r *http.Request) (model.Plant, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err == nil {
		if plant, ok := h.Catalog.Get(id); ok {
			return plant, true
		}
	}
	lang := h.lang(r, "")
	respondJSON(w, http.StatusNotFound, notFoundResponse{
		Error:     i18n.T(lang, i18n.PlantAbsent),
		Back:      collectionPath,
		BackLabel: i18n.T(lang, i18n.BackToCollection),
	})
	return model.Plant{}, false
}
