package capture

import (
	"bytes"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"govor-biljaka/model"
)

type encoded struct {
	full  []byte
	thumb []byte
}

// normalize re-encodes any supported photo as an upright JPEG no larger than
// maxEdge on either side, plus a thumbnail. Dimensions are read from the
// header first so an image over maxPixels is refused before it is decoded.
func normalize(raw []byte, maxEdge, thumbEdge, maxPixels int) (*encoded, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	var full bytes.Buffer
	if err := imaging.Encode(&full, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	var thumb bytes.Buffer
	small := imaging.Fit(img, thumbEdge, thumbEdge, imaging.Lanczos)
	if err := imaging.Encode(&thumb, small, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}

	return &encoded{full: full.Bytes(), thumb: thumb.Bytes()}, nil
}

type exifMeta struct {
	location *model.Point
	takenAt  *time.Time
}

// readExif pulls GPS position and capture time from the original bytes.
// Photos without EXIF (PNG, canvas captures) yield an empty result.
func readExif(raw []byte) exifMeta {
	var meta exifMeta
	x, err := exif.Decode(bytes.NewReader(raw))
	if err != nil {
		return meta
	}
	if lat, lng, err := x.LatLong(); err == nil {
		p := model.Point{Lat: lat, Lng: lng}
		if p.Valid() && !p.IsZero() {
			meta.location = &p
		}
	}
	if t, err := x.DateTime(); err == nil {
		t = t.UTC()
		meta.takenAt = &t
	}
	return meta
}
