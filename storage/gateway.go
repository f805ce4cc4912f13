package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PlaceholderObjectName is the marker object hosted stores emit for an empty
// folder. It is a listing artifact, not a stored image, and callers must
// filter it out.
const PlaceholderObjectName = ".emptyFolderPlaceholder"

// DefaultSignedURLTTL is the validity window used for gallery access URLs.
const DefaultSignedURLTTL = 60 * time.Second

var ErrEmptyKey = errors.New("storage: object key cannot be empty")

// Gateway provides access to the MinIO/S3 bucket holding generated images.
type Gateway struct {
	client *minio.Client
	bucket string
}

// ObjectInfo describes one stored object as reported by the listing.
type ObjectInfo struct {
	Name         string
	Size         int64
	LastModified time.Time
}

// NewGatewayFromEnv initialises the Gateway using MINIO_* environment
// variables. It returns (nil, nil) when the storage backend is not
// configured so callers can degrade instead of failing startup.
func NewGatewayFromEnv() (*Gateway, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	return &Gateway{client: client, bucket: bucket}, nil
}

// IsPlaceholder reports whether a listed object name is the empty-folder
// marker rather than a real stored object.
func IsPlaceholder(name string) bool {
	return path.Base(strings.TrimSpace(name)) == PlaceholderObjectName
}

// Upload stores data under the given key. The key must be non-empty; any
// collision policy is enforced by the backing store and surfaced as-is.
func (g *Gateway) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if g == nil || g.client == nil {
		return errors.New("storage: gateway not configured")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := g.client.PutObject(uploadCtx, g.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("storage: upload %s: %w", key, err)
	}
	return nil
}

// ListObjects returns the raw bucket listing. The result may include the
// empty-folder placeholder; callers filter it with IsPlaceholder.
func (g *Gateway) ListObjects(ctx context.Context) ([]ObjectInfo, error) {
	if g == nil || g.client == nil {
		return nil, errors.New("storage: gateway not configured")
	}

	listCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var infos []ObjectInfo
	for object := range g.client.ListObjects(listCtx, g.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if object.Err != nil {
			return nil, fmt.Errorf("storage: list objects: %w", object.Err)
		}
		infos = append(infos, ObjectInfo{
			Name:         object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}
	return infos, nil
}

// SignedURL returns a temporary capability URL for reading the named object.
func (g *Gateway) SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if g == nil || g.client == nil {
		return "", errors.New("storage: gateway not configured")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", ErrEmptyKey
	}
	if ttl <= 0 {
		ttl = DefaultSignedURLTTL
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url, err := g.client.PresignedGetObject(presignCtx, g.bucket, trimmed, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("storage: sign %s: %w", trimmed, err)
	}
	return url.String(), nil
}
