package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"govor-biljaka/model"
)

const testContainer = "plant-observations"

type fakeBlob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// blobServer answers the Put Blob, Get Blob, Delete Blob and List Blobs
// calls of the Blob service REST API from memory.
type blobServer struct {
	mu    sync.Mutex
	blobs map[string]fakeBlob
}

func (b *blobServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	container, name, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if container != testContainer {
		blobError(w, http.StatusNotFound, "ContainerNotFound")
		return
	}
	if name == "" && r.URL.Query().Get("comp") == "list" {
		b.list(w, r.URL.Query().Get("prefix"))
		return
	}

	switch r.Method {
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.blobs[name] = fakeBlob{
			data:        data,
			contentType: r.Header.Get("x-ms-blob-content-type"),
			modified:    time.Now().UTC(),
		}
		w.Header().Set("ETag", `"0x8D0000000000001"`)
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		blob, ok := b.blobs[name]
		if !ok {
			blobError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		w.Header().Set("Content-Type", blob.contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(blob.data)))
		w.Header().Set("x-ms-blob-type", "BlockBlob")
		w.WriteHeader(http.StatusOK)
		w.Write(blob.data)
	case http.MethodDelete:
		if _, ok := b.blobs[name]; !ok {
			blobError(w, http.StatusNotFound, "BlobNotFound")
			return
		}
		delete(b.blobs, name)
		w.WriteHeader(http.StatusAccepted)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *blobServer) get(name string) (fakeBlob, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.blobs[name]
	return blob, ok
}

func (b *blobServer) list(w http.ResponseWriter, prefix string) {
	names := make([]string, 0, len(b.blobs))
	for name := range b.blobs {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><EnumerationResults ContainerName="%s"><Prefix>%s</Prefix><Blobs>`, testContainer, prefix)
	for _, name := range names {
		blob := b.blobs[name]
		fmt.Fprintf(w,
			`<Blob><Name>%s</Name><Properties><Last-Modified>%s</Last-Modified><Content-Length>%d</Content-Length><Content-Type>%s</Content-Type><BlobType>BlockBlob</BlobType></Properties></Blob>`,
			name, blob.modified.Format(http.TimeFormat), len(blob.data), blob.contentType)
	}
	fmt.Fprint(w, `</Blobs><NextMarker /></EnumerationResults>`)
}

func blobError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="utf-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newAzureTestStorage(t *testing.T) (*AzureBlobStorage, *blobServer) {
	t.Helper()
	fake := &blobServer{blobs: map[string]fakeBlob{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewAzureBlobStorage(srv.URL+"/?sv=2022-11-02&sig=test", testContainer, zap.NewNop())
	require.NoError(t, err)
	return s, fake
}

func TestAzureBlobImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, fake := newAzureTestStorage(t)

	require.NoError(t, s.SaveImage(ctx, "image-1746612000000-ab12cd34.jpg", "image/jpeg", []byte("jpeg bytes")))
	stored, ok := fake.get("image-1746612000000-ab12cd34.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", stored.contentType)

	rc, err := s.OpenImage(ctx, "image-1746612000000-ab12cd34.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	_, err = s.SaveObservation(ctx, &model.Observation{Image: "image-1746612000000-ab12cd34.jpg", Timestamp: time.Now()})
	require.NoError(t, err)

	images, err := s.ListImages(ctx)
	require.NoError(t, err)
	require.Len(t, images, 1, "record blobs are not images")
	assert.Equal(t, "image-1746612000000-ab12cd34.jpg", images[0].Name)
	assert.Equal(t, int64(len("jpeg bytes")), images[0].Size)
	assert.False(t, images[0].Modified.IsZero())

	require.NoError(t, s.DeleteImage(ctx, "image-1746612000000-ab12cd34.jpg"))
	assert.ErrorIs(t, s.DeleteImage(ctx, "image-1746612000000-ab12cd34.jpg"), ErrNotFound)
	_, err = s.OpenImage(ctx, "image-1746612000000-ab12cd34.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAzureBlobRecordSharesImageKey(t *testing.T) {
	ctx := context.Background()
	s, fake := newAzureTestStorage(t)
	s.now = func() time.Time { return time.UnixMilli(1746612999999) }

	saved, err := s.SaveObservation(ctx, &model.Observation{
		Name:      "Visibaba",
		Image:     "image-1746612000000-ab12cd34.jpg",
		Thumbnail: "thumb-1746612000000-ab12cd34.jpg",
		Timestamp: time.Date(2025, 5, 7, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "observation-1746612000000-ab12cd34", saved.ID)
	record, ok := fake.get("observation-1746612000000-ab12cd34.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", record.contentType)

	got, err := s.GetObservation(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "Visibaba", got.Name)

	other, err := s.SaveObservation(ctx, &model.Observation{Image: "uploaded.png", Timestamp: time.Now()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(other.ID, "observation-1746612999999-"), other.ID)
	assert.NoError(t, checkObservationID(other.ID))
}

func TestAzureBlobListSkipsUnreadableAndSorts(t *testing.T) {
	ctx := context.Background()
	s, _ := newAzureTestStorage(t)
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i, offset := range []int{2, 0, 5} {
		_, err := s.SaveObservation(ctx, &model.Observation{
			Image:     fmt.Sprintf("image-17466120%05d-0000000%d.jpg", i, i),
			Timestamp: base.Add(time.Duration(offset) * time.Hour),
		})
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveImage(ctx, "observation-broken.json", "application/json", []byte("{")))

	list, err := s.ListObservations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Timestamp.Equal(base.Add(5*time.Hour)))
	assert.True(t, list[1].Timestamp.Equal(base.Add(2*time.Hour)))
	assert.True(t, list[2].Timestamp.Equal(base))
}

func TestAzureBlobDeleteObservation(t *testing.T) {
	ctx := context.Background()
	s, _ := newAzureTestStorage(t)
	saved, err := s.SaveObservation(ctx, &model.Observation{Image: "image-1-aaaaaaaa.jpg", Timestamp: time.Now()})
	require.NoError(t, err)

	require.NoError(t, s.DeleteObservation(ctx, saved.ID))
	_, err = s.GetObservation(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteObservation(ctx, saved.ID), ErrNotFound)

	_, err = s.GetObservation(ctx, "image-1-aaaaaaaa.jpg")
	assert.ErrorIs(t, err, ErrNotFound)
}
