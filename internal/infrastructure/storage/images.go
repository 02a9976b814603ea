package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/revivereads/marketplace/internal/core/ports"
)

// ImageService compresses uploads and writes them to an object store. Saved
// images are referenced by their public URL, <publicBase>/<folder>/<uuid>.jpg.
type ImageService struct {
	store      ports.ObjectStore
	compressor Compressor
	publicBase string
	log        zerolog.Logger
}

func NewImageService(store ports.ObjectStore, compressor Compressor, publicBase string, log zerolog.Logger) *ImageService {
	return &ImageService{
		store:      store,
		compressor: compressor,
		publicBase: strings.TrimRight(publicBase, "/"),
		log:        log,
	}
}

// Save stores every upload or none of them.
func (s *ImageService) Save(ctx context.Context, folder string, uploads []ports.Upload) ([]string, error) {
	urls := make([]string, 0, len(uploads))
	keys := make([]string, 0, len(uploads))
	for _, u := range uploads {
		data, err := s.compressor.Compress(u.Data)
		if err != nil {
			s.rollback(ctx, keys)
			return nil, fmt.Errorf("%s: %w", u.Filename, err)
		}
		key := path.Join(folder, uuid.NewString()+".jpg")
		if err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), MIMETypeJPEG); err != nil {
			s.rollback(ctx, keys)
			return nil, err
		}
		keys = append(keys, key)
		urls = append(urls, s.publicBase+"/"+key)
	}
	return urls, nil
}

// Remove deletes previously saved images. URLs that were not produced by this
// service, such as a default avatar, are ignored. Failures are logged only.
func (s *ImageService) Remove(ctx context.Context, folder string, urls []string) {
	prefix := s.publicBase + "/" + folder + "/"
	for _, u := range urls {
		if !strings.HasPrefix(u, prefix) {
			continue
		}
		key := strings.TrimPrefix(u, s.publicBase+"/")
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to delete image")
		}
	}
}

func (s *ImageService) rollback(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to roll back image")
		}
	}
}
