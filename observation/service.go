// Package observation runs the capture-to-storage pipeline and the read side
// of stored observations.
package observation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"govor-biljaka/capture"
	"govor-biljaka/geo"
	"govor-biljaka/model"
	"govor-biljaka/storage"
)

type Service struct {
	builder *capture.Builder
	images  storage.ImageStorage
	db      storage.ObservationDB
	log     *zap.Logger
	now     func() time.Time
}

func NewService(builder *capture.Builder, images storage.ImageStorage, db storage.ObservationDB, log *zap.Logger) *Service {
	return &Service{builder: builder, images: images, db: db, log: log, now: time.Now}
}

// Filter narrows List to observations within Radius meters of Near.
type Filter struct {
	Near   *model.Point
	Radius float64
}

// Submit builds the observation and stores it: image, then thumbnail, then
// the record, one request at a time. A failure after the image upload leaves
// the image behind for SweepOrphans.
func (s *Service) Submit(ctx context.Context, sub capture.Submission) (*model.Observation, error) {
	draft, err := s.builder.Build(sub)
	if err != nil {
		return nil, err
	}
	obs := draft.Observation

	if err := s.images.SaveImage(ctx, obs.Image, obs.ContentType, draft.Image); err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	if err := s.images.SaveImage(ctx, obs.Thumbnail, obs.ContentType, draft.Thumbnail); err != nil {
		s.log.Warn("thumbnail upload failed, continuing without it",
			zap.String("thumbnail", obs.Thumbnail),
			zap.Error(err),
		)
		obs.Thumbnail = ""
	}

	saved, err := s.db.SaveObservation(ctx, &obs)
	if err != nil {
		s.log.Error("observation record not saved, image left orphaned",
			zap.String("image", obs.Image),
			zap.Error(err),
		)
		return nil, fmt.Errorf("save observation: %w", err)
	}

	s.log.Info("observation saved",
		zap.String("id", saved.ID),
		zap.String("name", saved.Name),
		zap.Float64("lat", saved.Location.Lat),
		zap.Float64("lng", saved.Location.Lng),
	)
	return saved, nil
}

// List returns observations newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]model.Observation, error) {
	if f.Near == nil {
		return s.db.ListObservations(ctx)
	}
	if ns, ok := s.db.(storage.NearSearcher); ok {
		return ns.SearchObservationsNear(ctx, *f.Near, f.Radius)
	}
	all, err := s.db.ListObservations(ctx)
	if err != nil {
		return nil, err
	}
	return geo.Within(all, *f.Near, f.Radius), nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Observation, error) {
	return s.db.GetObservation(ctx, id)
}

// Delete removes the record, then its image blobs. Blob removal is best
// effort: once the record is gone the observation no longer exists.
func (s *Service) Delete(ctx context.Context, id string) error {
	obs, err := s.db.GetObservation(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.DeleteObservation(ctx, id); err != nil {
		return err
	}
	for _, name := range []string{obs.Image, obs.Thumbnail} {
		if name == "" {
			continue
		}
		if err := s.images.DeleteImage(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("image blob not deleted", zap.String("id", id), zap.String("image", name), zap.Error(err))
		}
	}
	s.log.Info("observation deleted", zap.String("id", id))
	return nil
}

// OpenImage streams the observation's photo, or its thumbnail when thumb is
// set and one exists.
func (s *Service) OpenImage(ctx context.Context, id string, thumb bool) (io.ReadCloser, string, error) {
	obs, err := s.db.GetObservation(ctx, id)
	if err != nil {
		return nil, "", err
	}
	name := obs.Image
	if thumb && obs.Thumbnail != "" {
		name = obs.Thumbnail
	}
	if name == "" {
		return nil, "", storage.ErrNotFound
	}
	rc, err := s.images.OpenImage(ctx, name)
	if err != nil {
		return nil, "", err
	}
	contentType := obs.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return rc, contentType, nil
}

// SweepOrphans deletes image blobs older than grace that no observation
// references, and returns how many it removed.
func (s *Service) SweepOrphans(ctx context.Context, grace time.Duration) (int, error) {
	observations, err := s.db.ListObservations(ctx)
	if err != nil {
		return 0, fmt.Errorf("list observations: %w", err)
	}
	referenced := make(map[string]bool, len(observations)*2)
	for _, o := range observations {
		referenced[o.Image] = true
		referenced[o.Thumbnail] = true
	}

	images, err := s.images.ListImages(ctx)
	if err != nil {
		return 0, fmt.Errorf("list images: %w", err)
	}

	cutoff := s.now().Add(-grace)
	removed := 0
	for _, img := range images {
		if referenced[img.Name] || img.Modified.After(cutoff) {
			continue
		}
		if err := s.images.DeleteImage(ctx, img.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("orphan image not deleted", zap.String("image", img.Name), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
