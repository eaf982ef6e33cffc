package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"govor-biljaka/capture"
	"govor-biljaka/geo"
	"govor-biljaka/i18n"
	"govor-biljaka/model"
	"govor-biljaka/observation"
)

const defaultNearRadius = 5000

type observationRequest struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Image           string       `json:"image"`
	Location        *model.Point `json:"location"`
	Timestamp       string       `json:"timestamp"`
	ObservationDate string       `json:"observationDate"`
	Lang            string       `json:"lang"`
}

func (h *Handlers) handleCreateObservation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var (
		sub capture.Submission
		err error
	)
	if mediaType == "multipart/form-data" {
		sub, err = h.readMultipart(r)
	} else {
		sub, err = h.readJSON(r)
	}
	lang := sub.Lang
	if lang == "" {
		lang = h.lang(r, "")
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, lang, i18n.ImageTooLarge)
		case errors.Is(err, capture.ErrInvalidLocation):
			respondError(w, http.StatusBadRequest, lang, i18n.InvalidLocation)
		default:
			h.Log.Warn("invalid observation request", zap.Error(err))
			respondError(w, http.StatusBadRequest, lang, i18n.InvalidRequest)
		}
		return
	}

	obs, err := h.Observations.Submit(r.Context(), sub)
	if err != nil {
		h.respondFailure(w, r, lang, err, i18n.SaveFailed)
		return
	}
	respondJSON(w, http.StatusCreated, obs)
}

func (h *Handlers) readJSON(r *http.Request) (capture.Submission, error) {
	var req observationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return capture.Submission{}, err
	}
	return capture.Submission{
		Name:            req.Name,
		Description:     req.Description,
		Image:           req.Image,
		Location:        req.Location,
		Timestamp:       req.Timestamp,
		ObservationDate: req.ObservationDate,
		Lang:            h.lang(r, req.Lang),
	}, nil
}

// readMultipart accepts the photo as form field "file". A missing file is
// left for the builder to reject so the error is the same as for JSON.
func (h *Handlers) readMultipart(r *http.Request) (capture.Submission, error) {
	if err := r.ParseMultipartForm(maxRequestBytes); err != nil {
		return capture.Submission{}, err
	}
	sub := capture.Submission{
		Name:            r.FormValue("name"),
		Description:     r.FormValue("description"),
		Timestamp:       r.FormValue("timestamp"),
		ObservationDate: r.FormValue("observationDate"),
		Lang:            h.lang(r, r.FormValue("lang")),
	}

	loc, err := parseLatLng(r.FormValue("lat"), r.FormValue("lng"))
	if err != nil {
		return sub, err
	}
	sub.Location = loc

	file, fileHeader, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return sub, nil
	}
	if err != nil {
		return sub, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return sub, err
	}
	h.Log.Debug("multipart photo received",
		zap.String("filename", fileHeader.Filename),
		zap.Int64("size", fileHeader.Size),
	)
	sub.ImageBytes = data
	return sub, nil
}

func parseLatLng(lat, lng string) (*model.Point, error) {
	if strings.TrimSpace(lat) == "" && strings.TrimSpace(lng) == "" {
		return nil, nil
	}
	la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err1 != nil || err2 != nil {
		return nil, capture.ErrInvalidLocation
	}
	return &model.Point{Lat: la, Lng: ln}, nil
}

func (h *Handlers) handleListObservations(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	filter, err := parseNearFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, lang, i18n.InvalidLocation)
		return
	}
	list, err := h.Observations.List(r.Context(), filter)
	if err != nil {
		h.respondFailure(w, r, lang, err, i18n.LoadFailed)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// parseNearFilter reads near=lat,lng and radius=meters.
func parseNearFilter(r *http.Request) (observation.Filter, error) {
	q := r.URL.Query()
	near := q.Get("near")
	if near == "" {
		return observation.Filter{}, nil
	}
	lat, lng, ok := strings.Cut(near, ",")
	if !ok {
		return observation.Filter{}, capture.ErrInvalidLocation
	}
	p, err := parseLatLng(lat, lng)
	if err != nil || p == nil || !p.Valid() {
		return observation.Filter{}, capture.ErrInvalidLocation
	}
	radius := float64(defaultNearRadius)
	if v := q.Get("radius"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil || radius <= 0 {
			return observation.Filter{}, capture.ErrInvalidLocation
		}
	}
	return observation.Filter{Near: p, Radius: radius}, nil
}

func (h *Handlers) handleGetObservation(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	obs, err := h.Observations.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondFailure(w, r, lang, err, i18n.LoadFailed)
		return
	}
	respondJSON(w, http.StatusOK, obs)
}

func (h *Handlers) handleObservationImage(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	thumb, _ := strconv.ParseBool(r.URL.Query().Get("thumb"))
	rc, contentType, err := h.Observations.OpenImage(r.Context(), mux.Vars(r)["id"], thumb)
	if err != nil {
		h.respondFailure(w, r, lang, err, i18n.LoadFailed)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("image stream interrupted", zap.Error(err))
	}
}

func (h *Handlers) handleDeleteObservation(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	id := mux.Vars(r)["id"]
	if err := h.Observations.Delete(r.Context(), id); err != nil {
		h.respondFailure(w, r, lang, err, i18n.DeleteFailed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

func (h *Handlers) handleObservationMap(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	list, err := h.Observations.List(r.Context(), observation.Filter{})
	if err != nil {
		h.respondFailure(w, r, lang, err, i18n.LoadFailed)
		return
	}
	respondJSON(w, http.StatusOK, geo.BuildMap(geo.ObservationMarkers(list), -1))
}
