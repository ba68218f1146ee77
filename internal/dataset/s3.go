package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the connection to an S3-compatible endpoint.
type S3Options struct {
	Endpoint  string // host[:port], e.g. "s3.amazonaws.com" or "localhost:9000"
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
}

// NewS3Client creates a MinIO client for any S3-compatible store.
func NewS3Client(opts S3Options) (*minio.Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("S3 endpoint is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return client, nil
}

// ParseS3URL splits "s3://bucket/prefix" into bucket and prefix.
// ok is false when u is not an s3 URL.
func ParseS3URL(u string) (bucket, prefix string, ok bool) {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Scheme != "s3" || parsed.Host == "" {
		return "", "", false
	}
	return parsed.Host, strings.TrimPrefix(parsed.Path, "/"), true
}

// S3Loader builds collections from objects in an S3-compatible bucket,
// following the same layout rules as Loader.
type S3Loader struct {
	client *minio.Client
	parser *Parser
	logger *slog.Logger
}

// NewS3Loader creates an S3 loader. A nil logger discards output.
func NewS3Loader(client *minio.Client, logger *slog.Logger) *S3Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &S3Loader{
		client: client,
		parser: NewParser(),
		logger: logger,
	}
}

// Load lists every object under prefix and returns them as a collection.
// Image payloads are fetched lazily when an embedder reads them.
// Per-object failures are returned joined, alongside the usable collection.
func (l *S3Loader) Load(ctx context.Context, name, bucket, prefix string) (*Collection, error) {
	objects := make(map[string]minio.ObjectInfo)
	var keys []string

	for obj := range l.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		objects[obj.Key] = obj
		keys = append(keys, obj.Key)
	}

	l.logger.Debug("listed bucket", "bucket", bucket, "prefix", prefix, "objects", len(keys))

	coll := NewCollection(name)
	claimed := make(map[string]bool)
	var failures []error

	for _, key := range keys {
		if !isDocument(key) || isMeta(path.Base(key)) {
			continue
		}
		item, err := l.loadDocument(ctx, bucket, prefix, objects[key])
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		if item.Media != nil {
			claimed[item.Media.Path()] = true
		}
		coll.Put(item)
	}

	for _, key := range keys {
		if !IsImage(key) || isMeta(path.Base(key)) {
			continue
		}
		media := &ObjectMedia{client: l.client, bucket: bucket, key: key}
		if claimed[media.Path()] {
			continue
		}

		obj := objects[key]
		item := &Item{
			ID:        objectID(prefix, key),
			Media:     media,
			UpdatedAt: obj.LastModified,
		}

		if sidecar, ok := objects[key+".yaml"]; ok {
			if err := l.applySidecar(ctx, bucket, sidecar, item); err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", sidecar.Key, err))
				continue
			}
		}

		coll.Put(item)
	}

	if len(failures) > 0 {
		err := errors.Join(failures...)
		l.logger.Warn("collection loaded with failures", "collection", name, "loaded", coll.Len(), "error", err)
		return coll, err
	}

	return coll, nil
}

func (l *S3Loader) loadDocument(ctx context.Context, bucket, prefix string, obj minio.ObjectInfo) (*Item, error) {
	data, err := l.get(ctx, bucket, obj.Key)
	if err != nil {
		return nil, err
	}

	item, fm, err := l.parser.ParseDocument(objectID(prefix, obj.Key), data, obj.LastModified)
	if err != nil {
		return nil, err
	}

	if fm != nil && fm.Image != "" {
		key := fm.Image
		if !strings.HasPrefix(key, "/") {
			key = path.Join(path.Dir(obj.Key), key)
		}
		item.Media = &ObjectMedia{client: l.client, bucket: bucket, key: strings.TrimPrefix(key, "/")}
	}

	return item, nil
}

func (l *S3Loader) applySidecar(ctx context.Context, bucket string, obj minio.ObjectInfo, item *Item) error {
	data, err := l.get(ctx, bucket, obj.Key)
	if err != nil {
		return err
	}

	fm, err := l.parser.ParseSidecar(data)
	if err != nil {
		return err
	}
	if err := fm.Apply(item); err != nil {
		return err
	}

	if obj.LastModified.After(item.UpdatedAt) {
		item.UpdatedAt = obj.LastModified
	}
	return nil
}

func (l *S3Loader) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := l.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func objectID(prefix, key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
}

// ObjectMedia is a payload stored in an S3-compatible bucket.
type ObjectMedia struct {
	client *minio.Client
	bucket string
	key    string
}

// Path implements Media.
func (o *ObjectMedia) Path() string {
	return "s3://" + o.bucket + "/" + o.key
}

// MimeType implements Media.
func (o *ObjectMedia) MimeType() string {
	return mimeFor(o.key)
}

// Data implements Media.
func (o *ObjectMedia) Data(ctx context.Context) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", ErrNoData, o.Path())
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoData, o.Path())
	}
	return data, nil
}
