// Package geo builds the map data the front end's Leaflet wrapper renders.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"govor-biljaka/model"
)

const (
	DefaultZoom = 7
	// BoundsPadding is the pixel padding the client applies when fitting bounds.
	BoundsPadding = 50

	ColorVerified = "#15803d"
	ColorUser     = "#d97706"
	ColorSelected = "#166534"

	KindVerified = "verified"
	KindUser     = "user"
)

// SerbiaCentroid is where the map opens when there is nothing to show.
var SerbiaCentroid = LatLng{Lat: 44.0165, Lng: 21.0059}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Bounds struct {
	SouthWest LatLng `json:"southWest"`
	NorthEast LatLng `json:"northEast"`
	Padding   int    `json:"padding"`
}

type Marker struct {
	LatLng
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
	Kind        string `json:"kind"`
	Color       string `json:"color"`
	Selected    bool   `json:"selected,omitempty"`
	Ref         string `json:"ref,omitempty"`
}

// MapView is a ready-to-render map: where to center, what to fit and which
// markers to draw.
type MapView struct {
	Center  LatLng   `json:"center"`
	Zoom    int      `json:"zoom"`
	Bounds  *Bounds  `json:"bounds,omitempty"`
	Markers []Marker `json:"markers"`
}

// BuildMap centers on the first marker (or SerbiaCentroid when empty) and
// fits bounds over all markers. selected is a marker index, -1 for none.
func BuildMap(markers []Marker, selected int) MapView {
	view := MapView{Center: SerbiaCentroid, Zoom: DefaultZoom, Markers: []Marker{}}
	if len(markers) == 0 {
		return view
	}

	mp := make(orb.MultiPoint, 0, len(markers))
	for i, m := range markers {
		m.Color = colorFor(m.Kind)
		if i == selected {
			m.Selected = true
			m.Color = ColorSelected
		}
		view.Markers = append(view.Markers, m)
		mp = append(mp, orb.Point{m.Lng, m.Lat})
	}
	view.Center = markers[0].LatLng

	b := mp.Bound()
	view.Bounds = &Bounds{
		SouthWest: LatLng{Lat: b.Min.Lat(), Lng: b.Min.Lon()},
		NorthEast: LatLng{Lat: b.Max.Lat(), Lng: b.Max.Lon()},
		Padding:   BoundsPadding,
	}
	return view
}

func colorFor(kind string) string {
	if kind == KindVerified {
		return ColorVerified
	}
	return ColorUser
}

// PlantMarkers turns catalog locations into markers. Unverified entries are
// drawn as user submissions.
func PlantMarkers(locations []model.Location) []Marker {
	out := make([]Marker, 0, len(locations))
	for _, l := range locations {
		kind := KindUser
		if l.Verified {
			kind = KindVerified
		}
		out = append(out, Marker{
			LatLng:      LatLng{Lat: l.Lat, Lng: l.Lng},
			Label:       l.Place,
			Description: l.Description,
			Date:        l.Date,
			Kind:        kind,
		})
	}
	return out
}

// ObservationMarkers skips observations stored without a location.
func ObservationMarkers(observations []model.Observation) []Marker {
	out := make([]Marker, 0, len(observations))
	for _, o := range observations {
		if o.Location.IsZero() {
			continue
		}
		out = append(out, Marker{
			LatLng:      LatLng{Lat: o.Location.Lat, Lng: o.Location.Lng},
			Label:       o.Name,
			Description: o.Description,
			Date:        o.Timestamp.Format("2006-01-02"),
			Kind:        KindUser,
			Ref:         o.ID,
		})
	}
	return out
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(a, b model.Point) float64 {
	return geo.Distance(orb.Point{a.Lng, a.Lat}, orb.Point{b.Lng, b.Lat})
}

// Within keeps the observations no farther than radius meters from center.
func Within(observations []model.Observation, center model.Point, radius float64) []model.Observation {
	out := []model.Observation{}
	for _, o := range observations {
		if o.Location.IsZero() {
			continue
		}
		if DistanceMeters(center, o.Location) <= radius {
			out = append(out, o)
		}
	}
	return out
}
