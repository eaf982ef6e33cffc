package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"govor-biljaka/model"
)

const (
	observationPrefix = "observation-"
	observationSuffix = ".json"
	imagePrefix       = "image-"
	imageSuffix       = ".jpg"
)

// AzureBlobStorage keeps both images and observation records in one blob
// container, authenticated by a SAS token embedded in the service URL.
// Records are named observation-<key>.json, sharing <key> with their
// image-<key>.jpg, and their id is the name without the extension.
type AzureBlobStorage struct {
	client    *azblob.Client
	container string
	log       *zap.Logger
	now       func() time.Time
}

func NewAzureBlobStorage(serviceURL, container string, log *zap.Logger) (*AzureBlobStorage, error) {
	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("azure blob client: %w", err)
	}
	return &AzureBlobStorage{client: client, container: container, log: log, now: time.Now}, nil
}

func (s *AzureBlobStorage) SaveImage(ctx context.Context, name, contentType string, data []byte) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	return err
}

func (s *AzureBlobStorage) OpenImage(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, notFound(err)
	}
	return resp.Body, nil
}

func (s *AzureBlobStorage) DeleteImage(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	_, err := s.client.DeleteBlob(ctx, s.container, name, nil)
	return notFound(err)
}

func (s *AzureBlobStorage) ListImages(ctx context.Context) ([]ImageInfo, error) {
	var out []ImageInfo
	pager := s.client.NewListBlobsFlatPager(s.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || strings.HasSuffix(*item.Name, observationSuffix) {
				continue
			}
			info := ImageInfo{Name: *item.Name}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					info.Size = *p.ContentLength
				}
				if p.LastModified != nil {
					info.Modified = *p.LastModified
				}
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *AzureBlobStorage) SaveObservation(ctx context.Context, obs *model.Observation) (*model.Observation, error) {
	saved := *obs
	saved.ID = s.recordID(obs.Image)
	body, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return nil, err
	}
	contentType := "application/json"
	_, err = s.client.UploadBuffer(ctx, s.container, saved.ID+observationSuffix, body, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListObservations downloads every record blob. A record that cannot be
// read or parsed is logged and skipped rather than failing the listing.
func (s *AzureBlobStorage) ListObservations(ctx context.Context) ([]model.Observation, error) {
	out := []model.Observation{}
	prefix := observationPrefix
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !strings.HasSuffix(*item.Name, observationSuffix) {
				continue
			}
			obs, err := s.download(ctx, *item.Name)
			if err != nil {
				s.log.Warn("skipping unreadable observation blob", zap.String("blob", *item.Name), zap.Error(err))
				continue
			}
			out = append(out, *obs)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *AzureBlobStorage) GetObservation(ctx context.Context, id string) (*model.Observation, error) {
	if err := checkObservationID(id); err != nil {
		return nil, err
	}
	return s.download(ctx, id+observationSuffix)
}

func (s *AzureBlobStorage) DeleteObservation(ctx context.Context, id string) error {
	if err := checkObservationID(id); err != nil {
		return err
	}
	_, err := s.client.DeleteBlob(ctx, s.container, id+observationSuffix, nil)
	return notFound(err)
}

func (s *AzureBlobStorage) Close() error {
	return nil
}

func (s *AzureBlobStorage) download(ctx context.Context, name string) (*model.Observation, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, notFound(err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, err
	}
	var obs model.Observation
	if err := json.Unmarshal(buf.Bytes(), &obs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if obs.ID == "" {
		obs.ID = strings.TrimSuffix(name, observationSuffix)
	}
	return &obs, nil
}

// recordID names a record after its image so the two blobs share one stamp.
// An image not named by the capture flow gets a fresh key.
func (s *AzureBlobStorage) recordID(image string) string {
	key, ok := strings.CutPrefix(image, imagePrefix)
	if ok {
		key, ok = strings.CutSuffix(key, imageSuffix)
	}
	if !ok || key == "" {
		key = fmt.Sprintf("%d-%s", s.now().UnixMilli(), uuid.NewString()[:8])
	}
	return observationPrefix + key
}

func checkObservationID(id string) error {
	if !strings.HasPrefix(id, observationPrefix) {
		return ErrNotFound
	}
	return checkName(id + observationSuffix)
}

func notFound(err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return ErrNotFound
	}
	return err
}
