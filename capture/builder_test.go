package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govor-biljaka/i18n"
	"govor-biljaka/model"
)

var fixedNow = time.Date(2025, 5, 7, 17, 46, 25, 0, time.UTC)

func newTestBuilder() *Builder {
	b := NewBuilder(1<<20, 64)
	b.ThumbEdge = 16
	b.Now = func() time.Time { return fixedNow }
	return b
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 20, G: uint8(100 + x%100), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func testPNGDataURL(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestBuildRequiresImage(t *testing.T) {
	_, err := newTestBuilder().Build(Submission{Name: "Visibaba"})
	assert.ErrorIs(t, err, ErrImageRequired)

	_, err = newTestBuilder().Build(Submission{Image: "   "})
	assert.ErrorIs(t, err, ErrImageRequired)
}

func TestBuildDefaultsForBlankCapture(t *testing.T) {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(testJPEG(t, 32, 24))

	d, err := newTestBuilder().Build(Submission{Image: dataURL})
	require.NoError(t, err)
	assert.Equal(t, "Nepoznata biljka", d.Observation.Name)
	assert.Equal(t, model.Point{}, d.Observation.Location)
	assert.Equal(t, fixedNow, d.Observation.Timestamp)
	assert.Regexp(t, fmt.Sprintf(`^image-%d-[0-9a-f]{8}\.jpg$`, fixedNow.UnixMilli()), d.Observation.Image)
	assert.Equal(t,
		strings.TrimPrefix(d.Observation.Image, "image-"),
		strings.TrimPrefix(d.Observation.Thumbnail, "thumb-"),
	)
}

func TestBuildEnglishDefaultName(t *testing.T) {
	d, err := newTestBuilder().Build(Submission{Image: testPNGDataURL(t), Lang: i18n.English})
	require.NoError(t, err)
	assert.Equal(t, "Unnamed Plant", d.Observation.Name)
	assert.Equal(t, "en", d.Observation.Lang)
}

func TestBuildNormalizesToJPEG(t *testing.T) {
	d, err := newTestBuilder().Build(Submission{
		Name:       "  Leska ",
		ImageBytes: testJPEG(t, 200, 100),
	})
	require.NoError(t, err)
	assert.Equal(t, "Leska", d.Observation.Name)
	assert.Equal(t, "image/jpeg", d.Observation.ContentType)
	assert.Equal(t, int64(len(d.Image)), d.Observation.Size)

	full, format, err := image.Decode(bytes.NewReader(d.Image))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 64, full.Bounds().Dx())
	assert.Equal(t, 32, full.Bounds().Dy())

	thumb, err := jpeg.Decode(bytes.NewReader(d.Thumbnail))
	require.NoError(t, err)
	assert.Equal(t, 16, thumb.Bounds().Dx())
}

func TestBuildPNGDataURL(t *testing.T) {
	d, err := newTestBuilder().Build(Submission{Image: testPNGDataURL(t)})
	require.NoError(t, err)
	_, err = jpeg.Decode(bytes.NewReader(d.Image))
	assert.NoError(t, err)
	assert.Nil(t, d.Observation.TakenAt)
}

func TestBuildKeepsClientLocationAndTimestamp(t *testing.T) {
	acc := 12.5
	d, err := newTestBuilder().Build(Submission{
		Image:           testPNGDataURL(t),
		Location:        &model.Point{Lat: 44.8186, Lng: 20.4541, Accuracy: &acc},
		ObservationDate: "2024-03-18T09:15:00.000Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 44.8186, d.Observation.Location.Lat)
	assert.Equal(t, 12.5, *d.Observation.Location.Accuracy)
	assert.Equal(t, time.Date(2024, 3, 18, 9, 15, 0, 0, time.UTC), d.Observation.Timestamp)
}

func TestBuildTimestampWinsOverObservationDate(t *testing.T) {
	d, err := newTestBuilder().Build(Submission{
		Image:           testPNGDataURL(t),
		Timestamp:       "2024-01-01T00:00:00Z",
		ObservationDate: "2024-03-18T09:15:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 2024, d.Observation.Timestamp.Year())
	assert.Equal(t, time.January, d.Observation.Timestamp.Month())
}

func TestBuildValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{"not base64", Submission{Image: "data:image/jpeg;base64,@@@"}, ErrInvalidImage},
		{"not an image", Submission{Image: base64.StdEncoding.EncodeToString([]byte("hello"))}, ErrInvalidImage},
		{"non image data url", Submission{Image: "data:text/plain;base64,aGVsbG8="}, ErrInvalidImage},
		{"too large", Submission{ImageBytes: make([]byte, 2<<20)}, ErrImageTooLarge},
		{"bad latitude", Submission{Image: "aGVsbG8=", Location: &model.Point{Lat: 91}}, ErrInvalidLocation},
		{"bad timestamp", Submission{Image: "aGVsbG8=", Timestamp: "yesterday"}, ErrInvalidTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestBuilder().Build(tt.sub)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuildSameMillisecondGetsDistinctBlobs(t *testing.T) {
	b := newTestBuilder()
	sub := Submission{Image: testPNGDataURL(t)}

	first, err := b.Build(sub)
	require.NoError(t, err)
	second, err := b.Build(sub)
	require.NoError(t, err)

	assert.Equal(t, first.Observation.Timestamp, second.Observation.Timestamp)
	assert.NotEqual(t, first.Observation.Image, second.Observation.Image)
	assert.NotEqual(t, first.Observation.Thumbnail, second.Observation.Thumbnail)
}

// pngHeader returns a PNG that declares w×h pixels but carries no pixel data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	chunk := func(kind string, data []byte) {
		binary.Write(&buf, binary.BigEndian, uint32(len(data)))
		body := append([]byte(kind), data...)
		buf.Write(body)
		binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth, grayscale
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestBuildRejectsHugeDimensionsBeforeDecoding(t *testing.T) {
	raw := pngHeader(30000, 30000)
	require.Less(t, len(raw), 100)

	_, err := newTestBuilder().Build(Submission{ImageBytes: raw})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = newTestBuilder().Build(Submission{Image: base64.StdEncoding.EncodeToString(raw)})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestBuildPixelLimitIsConfigurable(t *testing.T) {
	assert.Equal(t, DefaultMaxPixels, NewBuilder(1<<20, 64).MaxPixels)

	b := newTestBuilder()
	b.MaxPixels = 32 * 32
	_, err := b.Build(Submission{ImageBytes: testJPEG(t, 40, 40)})
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = b.Build(Submission{ImageBytes: testJPEG(t, 32, 32)})
	assert.NoError(t, err)
}
