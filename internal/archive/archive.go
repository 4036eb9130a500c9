// Package archive keeps a copy of each uploaded capture in object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/model"
	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Default bucket names.
const (
	DefaultImageBucket = "image-files"
	DefaultAudioBucket = "audio-files"
)

// Archive stores captures and returns a reference that can later be discarded.
type Archive interface {
	Store(ctx context.Context, capture model.Capture) (string, error)
	Discard(ctx context.Context, ref string) error
}

// Nop is used when archiving is disabled.
type Nop struct{}

// Store returns an empty reference.
func (Nop) Store(context.Context, model.Capture) (string, error) { return "", nil }

// Discard does nothing.
func (Nop) Discard(context.Context, string) error { return nil }

// bucketClient is the subset of the storage client used here.
type bucketClient interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
	RemoveFile(bucketID string, paths []string) ([]storage_go.FileUploadResponse, error)
}

// Config configures the Supabase archive.
type Config struct {
	URL         string
	Key         string
	ImageBucket string
	AudioBucket string
}

// Supabase archives captures into Supabase storage buckets.
type Supabase struct {
	client  bucketClient
	buckets map[model.MediaKind]string
	newID   func() string
}

// NewSupabase connects to the Supabase project described by cfg.
func NewSupabase(cfg Config) (*Supabase, error) {
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("supabase url and key are required: %w", common.ErrMissingConfig)
	}

	client, err := supabase.NewClient(cfg.URL, cfg.Key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return newSupabase(client.Storage, cfg), nil
}

func newSupabase(client bucketClient, cfg Config) *Supabase {
	image := cfg.ImageBucket
	if image == "" {
		image = DefaultImageBucket
	}
	audio := cfg.AudioBucket
	if audio == "" {
		audio = DefaultAudioBucket
	}

	return &Supabase{
		client: client,
		buckets: map[model.MediaKind]string{
			model.MediaImage: image,
			model.MediaAudio: audio,
		},
		newID: uuid.NewString,
	}
}

// Store uploads the capture as <uuid>_<filename> and returns its public URL.
func (s *Supabase) Store(ctx context.Context, capture model.Capture) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	bucket, ok := s.buckets[capture.Kind]
	if !ok {
		return "", fmt.Errorf("no bucket for capture kind %q", capture.Kind)
	}

	name := path.Base(strings.ReplaceAll(capture.Filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "capture"
	}
	objectPath := s.newID() + "_" + name

	opts := storage_go.FileOptions{}
	if capture.ContentType != "" {
		ct := capture.ContentType
		opts.ContentType = &ct
	}

	if _, err := s.client.UploadFile(bucket, objectPath, bytes.NewReader(capture.Data), opts); err != nil {
		return "", fmt.Errorf("failed to upload %s to %s: %w", objectPath, bucket, err)
	}

	url := s.client.GetPublicUrl(bucket, objectPath).SignedURL
	if url == "" {
		url = bucket + "/" + objectPath
	}
	return url, nil
}

// Discard removes a previously stored capture.
func (s *Supabase) Discard(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	bucket, objectPath, err := s.locate(ref)
	if err != nil {
		return err
	}
	if _, err := s.client.RemoveFile(bucket, []string{objectPath}); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", objectPath, bucket, err)
	}
	return nil
}

// locate finds the bucket and object path inside a reference returned by Store.
func (s *Supabase) locate(ref string) (string, string, error) {
	for _, bucket := range s.buckets {
		marker := bucket + "/"
		if i := strings.LastIndex(ref, marker); i >= 0 {
			objectPath := ref[i+len(marker):]
			if j := strings.IndexAny(objectPath, "?#"); j >= 0 {
				objectPath = objectPath[:j]
			}
			if objectPath != "" {
				return bucket, objectPath, nil
			}
		}
	}
	return "", "", fmt.Errorf("unrecognized archive reference %q", ref)
}
