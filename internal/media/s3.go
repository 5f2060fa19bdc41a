package media

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type S3Storage struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

func NewS3(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *zap.Logger) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
		exists, exErr := client.BucketExists(context.Background(), bucket)
		if exErr != nil || !exists {
			return nil, fmt.Errorf("bucket %s: %w", bucket, err)
		}
	}

	return &S3Storage{client: client, bucket: bucket, logger: logger.Named("s3")}, nil
}

// Upload stores the avatar under a bare uuid key (no extension) so the URL's
// last path segment doubles as the deletion key.
func (s *S3Storage) Upload(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	key := uuid.New().String()

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("put object failed", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("upload %s: %w", key, err)
	}

	url := fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucket, key)
	s.logger.Info("avatar uploaded",
		zap.String("key", key),
		zap.String("original_filename", filename),
		zap.Int("size_bytes", len(data)))
	return url, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("remove object failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// KeyFromURL derives the storage key from a stored avatar URL: the filename
// stem of the last path segment. Tolerates legacy URLs that carried an
// extension.
func KeyFromURL(url string) string {
	seg := url
	if i := strings.LastIndexByte(seg, '/'); i >= 0 {
		seg = seg[i+1:]
	}
	return strings.TrimSuffix(seg, path.Ext(seg))
}
