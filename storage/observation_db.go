package storage

import (
	"context"
	"errors"
	"sort"

	"govor-biljaka/model"
)

var ErrNotFound = errors.New("not found")

// ObservationDB persists observation records. SaveObservation assigns the id;
// ListObservations returns newest first.
type ObservationDB interface {
	SaveObservation(ctx context.Context, obs *model.Observation) (*model.Observation, error)
	ListObservations(ctx context.Context) ([]model.Observation, error)
	GetObservation(ctx context.Context, id string) (*model.Observation, error)
	DeleteObservation(ctx context.Context, id string) error
	Close() error
}

// NearSearcher is implemented by backends that can answer a radius query
// natively. Results are newest first like ListObservations.
type NearSearcher interface {
	SearchObservationsNear(ctx context.Context, center model.Point, meters float64) ([]model.Observation, error)
}

func sortNewestFirst(obs []model.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Timestamp.After(obs[j].Timestamp)
	})
}
