package services

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/plateful/recipe-feed/internal/models"
)

// Storage handles recipe photos on S3-compatible storage. New photos
// are staged under a temporary key while the draft is still being
// composed, then promoted to their final recipe-keyed object once the
// recipe has a server id.
type Storage struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

// NewStorage creates a new S3 photo storage service
func NewStorage(endpoint, accessKey, secretKey, bucket, region string, useSSL bool) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	scheme := "http"
	if useSSL {
		scheme = "https"
	}

	return &Storage{
		client:  client,
		bucket:  bucket,
		region:  region,
		baseURL: fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket),
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{
			Region: s.region,
		})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StagePhoto uploads a photo under a temporary key and returns that
// key. The draft carries it as its photo reference until submission
// promotes it.
func (s *Storage) StagePhoto(ctx context.Context, userID int, reader io.Reader, size int64, contentType string) (string, error) {
	key := fmt.Sprintf("%s%d/%s.jpg", models.StagedPhotoPrefix, userID, uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to stage photo: %w", err)
	}

	return key, nil
}

// Promote copies a staged photo to its final recipe-keyed object and
// returns the public URL. The staged object is removed best-effort.
func (s *Storage) Promote(ctx context.Context, stagedKey string, userID, recipeID int) (string, error) {
	dst := photoKey(userID, recipeID)

	_, err := s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dst},
		minio.CopySrcOptions{Bucket: s.bucket, Object: stagedKey},
	)
	if err != nil {
		return "", fmt.Errorf("failed to promote photo: %w", err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, stagedKey, minio.RemoveObjectOptions{}); err != nil {
		log.Printf("failed to remove staged photo %s: %v", stagedKey, err)
	}

	return fmt.Sprintf("%s/%s", s.baseURL, dst), nil
}

// Delete removes a recipe's photo blob
func (s *Storage) Delete(ctx context.Context, userID, recipeID int) error {
	err := s.client.RemoveObject(ctx, s.bucket, photoKey(userID, recipeID), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete photo: %w", err)
	}
	return nil
}

// Discard removes a staged photo that will never be promoted
func (s *Storage) Discard(ctx context.Context, stagedKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, stagedKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to discard staged photo: %w", err)
	}
	return nil
}

func photoKey(userID, recipeID int) string {
	return fmt.Sprintf("recipes/%d/%d.jpg", userID, recipeID)
}
