// Package capture turns a raw submission from the capture screen into an
// observation ready for storage.
package capture

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"govor-biljaka/i18n"
	"govor-biljaka/model"
)

var (
	ErrImageRequired    = errors.New("image is required")
	ErrInvalidImage     = errors.New("image could not be decoded")
	ErrImageTooLarge    = errors.New("image exceeds size limit")
	ErrInvalidLocation  = errors.New("location out of range")
	ErrInvalidTimestamp = errors.New("timestamp is not RFC 3339")
)

const (
	DefaultMaxBytes  = 10 << 20
	DefaultMaxEdge   = 2048
	DefaultThumbEdge = 320
	DefaultMaxPixels = 50_000_000
	JPEGQuality      = 80
)

// Submission is what the capture screen sends. Image is a data URL or bare
// base64; multipart uploads fill ImageBytes instead.
type Submission struct {
	Name            string
	Description     string
	Image           string
	ImageBytes      []byte
	Location        *model.Point
	Timestamp       string
	ObservationDate string
	Lang            i18n.Lang
}

// Draft is a built observation plus the encoded blobs to upload under
// Observation.Image and Observation.Thumbnail.
type Draft struct {
	Observation model.Observation
	Image       []byte
	Thumbnail   []byte
}

type Builder struct {
	MaxBytes  int64
	MaxEdge   int
	MaxPixels int
	ThumbEdge int
	Now       func() time.Time
}

func NewBuilder(maxBytes int64, maxEdge int) *Builder {
	return &Builder{
		MaxBytes:  maxBytes,
		MaxEdge:   maxEdge,
		MaxPixels: DefaultMaxPixels,
		ThumbEdge: DefaultThumbEdge,
		Now:       time.Now,
	}
}

// Build validates sub and fills in the defaults: a localized name when blank,
// the photo's EXIF position or {0,0} when no location was given, and the
// capture time when no timestamp was given.
func (b *Builder) Build(sub Submission) (*Draft, error) {
	raw, err := b.imageBytes(sub)
	if err != nil {
		return nil, err
	}
	if sub.Location != nil && !sub.Location.Valid() {
		return nil, ErrInvalidLocation
	}

	now := b.now()
	ts, err := pickTimestamp(sub, now)
	if err != nil {
		return nil, err
	}

	img, err := normalize(raw, b.maxEdge(), b.thumbEdge(), b.maxPixels())
	if err != nil {
		return nil, err
	}
	meta := readExif(raw)

	lang := sub.Lang
	if lang == "" {
		lang = i18n.Serbian
	}
	name := strings.TrimSpace(sub.Name)
	if name == "" {
		name = i18n.T(lang, i18n.UnnamedPlant)
	}

	var loc model.Point
	switch {
	case sub.Location != nil:
		loc = *sub.Location
	case meta.location != nil:
		loc = *meta.location
	}

	key := blobKey(now)
	obs := model.Observation{
		Name:        name,
		Description: strings.TrimSpace(sub.Description),
		Image:       "image-" + key + ".jpg",
		Thumbnail:   "thumb-" + key + ".jpg",
		ContentType: "image/jpeg",
		Size:        int64(len(img.full)),
		Location:    loc,
		Timestamp:   ts,
		TakenAt:     meta.takenAt,
		Lang:        string(lang),
	}
	return &Draft{Observation: obs, Image: img.full, Thumbnail: img.thumb}, nil
}

// blobKey is "<unixms>-<8 hex>". The random part keeps two captures in the
// same millisecond from sharing blobs.
func blobKey(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}

func (b *Builder) imageBytes(sub Submission) ([]byte, error) {
	limit := b.maxBytes()
	if len(sub.ImageBytes) > 0 {
		if int64(len(sub.ImageBytes)) > limit {
			return nil, ErrImageTooLarge
		}
		return sub.ImageBytes, nil
	}
	data := strings.TrimSpace(sub.Image)
	if data == "" {
		return nil, ErrImageRequired
	}
	payload, err := stripDataURL(data)
	if err != nil {
		return nil, err
	}
	if int64(base64.StdEncoding.DecodedLen(len(payload))) > limit+2 {
		return nil, ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if len(raw) == 0 {
		return nil, ErrImageRequired
	}
	if int64(len(raw)) > limit {
		return nil, ErrImageTooLarge
	}
	return raw, nil
}

// stripDataURL returns the base64 payload of "data:image/jpeg;base64,...".
// Input without the data: prefix is taken as bare base64.
func stripDataURL(s string) (string, error) {
	if !strings.HasPrefix(s, "data:") {
		return s, nil
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", fmt.Errorf("%w: data URL is not base64", ErrInvalidImage)
	}
	if !strings.HasPrefix(header, "data:image/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidImage, strings.TrimPrefix(header, "data:"))
	}
	return payload, nil
}

func pickTimestamp(sub Submission, now time.Time) (time.Time, error) {
	for _, v := range []string{sub.Timestamp, sub.ObservationDate} {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, ErrInvalidTimestamp
		}
		return ts.UTC(), nil
	}
	return now.UTC(), nil
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

func (b *Builder) maxBytes() int64 {
	if b.MaxBytes <= 0 {
		return DefaultMaxBytes
	}
	return b.MaxBytes
}

func (b *Builder) maxEdge() int {
	if b.MaxEdge <= 0 {
		return DefaultMaxEdge
	}
	return b.MaxEdge
}

func (b *Builder) maxPixels() int {
	if b.MaxPixels <= 0 {
		return DefaultMaxPixels
	}
	return b.MaxPixels
}

func (b *Builder) thumbEdge() int {
	if b.ThumbEdge <= 0 {
		return DefaultThumbEdge
	}
	return b.ThumbEdge
}
