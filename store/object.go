package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jacoelho/xmldoc"
)

// ObjectConfig describes an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region,omitempty"`
	UseSSL          bool   `yaml:"use_ssl,omitempty"`
}

// ObjectStore keeps zstd-compressed snapshots as objects in a bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// OpenObjectStore connects to the endpoint in cfg and creates the bucket if it
// does not exist.
func OpenObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = useSSL || u.Scheme == "https"
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return NewObjectStore(ctx, client, cfg.Bucket, cfg.Region)
}

// NewObjectStore uses an existing client, creating bucket if needed.
func NewObjectStore(ctx context.Context, client *minio.Client, bucket, region string) (*ObjectStore, error) {
	if client == nil {
		return nil, errors.New("object store client is required")
	}
	if bucket == "" {
		return nil, errors.New("object store bucket is required")
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &ObjectStore{client: client, bucket: bucket, logger: slog.Default().With("store", "object", "bucket", bucket)}, nil
}

func objectKey(id string) string {
	return id + ".yaml.zst"
}

// Save stores s under id, replacing any earlier snapshot.
func (o *ObjectStore) Save(ctx context.Context, id string, s *xmldoc.Snapshot) error {
	if err := checkID(id); err != nil {
		return err
	}
	data, err := Encode(s, true)
	if err != nil {
		return err
	}
	_, err = o.client.PutObject(ctx, o.bucket, objectKey(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:     "application/yaml",
		ContentEncoding: "zstd",
	})
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", id, err)
	}
	o.logger.DebugContext(ctx, "snapshot saved", "id", id, "bytes", len(data))
	return nil
}

// Load returns the snapshot stored under id, or an error wrapping ErrNotFound.
func (o *ObjectStore) Load(ctx context.Context, id string) (*xmldoc.Snapshot, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	obj, err := o.client.GetObject(ctx, o.bucket, objectKey(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, o.classify(id, "load", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, o.classify(id, "load", err)
	}
	o.logger.DebugContext(ctx, "snapshot loaded", "id", id)
	return Decode(data)
}

// Delete removes the snapshot stored under id. A missing id wraps ErrNotFound.
func (o *ObjectStore) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if _, err := o.client.StatObject(ctx, o.bucket, objectKey(id), minio.StatObjectOptions{}); err != nil {
		return o.classify(id, "delete", err)
	}
	if err := o.client.RemoveObject(ctx, o.bucket, objectKey(id), minio.RemoveObjectOptions{}); err != nil {
		return o.classify(id, "delete", err)
	}
	o.logger.DebugContext(ctx, "snapshot deleted", "id", id)
	return nil
}

func (o *ObjectStore) classify(id, op string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return notFound(id)
	}
	return fmt.Errorf("%s snapshot %q: %w", op, id, err)
}

// Close is a no-op.
func (o *ObjectStore) Close() error { return nil }
