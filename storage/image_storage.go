package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ImageStorage keeps image blobs by name.
type ImageStorage interface {
	SaveImage(ctx context.Context, name, contentType string, data []byte) error
	OpenImage(ctx context.Context, name string) (io.ReadCloser, error)
	DeleteImage(ctx context.Context, name string) error
	ListImages(ctx context.Context) ([]ImageInfo, error)
}

type ImageInfo struct {
	Name     string
	Size     int64
	Modified time.Time
}

// LocalImageStorage keeps images as files in one directory.
type LocalImageStorage struct {
	Directory string
}

func NewLocalImageStorage(dir string) (*LocalImageStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &LocalImageStorage{Directory: dir}, nil
}

func (s *LocalImageStorage) SaveImage(_ context.Context, name, _ string, data []byte) error {
	filePath, err := s.path(name)
	if err != nil {
		return err
	}
	file, err := os.CreateTemp(s.Directory, ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(file.Name())

	if _, err := file.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), filePath)
}

func (s *LocalImageStorage) OpenImage(_ context.Context, name string) (io.ReadCloser, error) {
	filePath, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalImageStorage) DeleteImage(_ context.Context, name string) error {
	filePath, err := s.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (s *LocalImageStorage) ListImages(_ context.Context) ([]ImageInfo, error) {
	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		return nil, err
	}
	var out []ImageInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ImageInfo{Name: e.Name(), Size: info.Size(), Modified: info.ModTime()})
	}
	return out, nil
}

func (s *LocalImageStorage) path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.Directory, name), nil
}

// checkName rejects names that would escape a flat namespace.
func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: invalid name %q", ErrNotFound, name)
	}
	return nil
}
