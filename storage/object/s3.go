package objstore

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/trezcool/picha/core"
)

// maxBatchSize is the S3 maximum for a single DeleteObjects call.
const maxBatchSize = 1000

type s3Store struct {
	client *s3.Client
	conf   core.StorageConfig
}

var _ core.FileStore = (*s3Store)(nil) // interface compliance check

// NewS3Store opens an S3-backed FileStore using the default AWS credential chain.
func NewS3Store(ctx context.Context, conf core.StorageConfig) (core.FileStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(conf.Region))
	if err != nil {
		return nil, errors.Wrap(err, "loading AWS config")
	}

	var opts []func(*s3.Options)
	if conf.Endpoint != "" {
		// S3-compatible services (MinIO, DO Spaces) need path-style addressing
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(conf.Endpoint)
			o.UsePathStyle = true
		})
	}
	return &s3Store{
		client: s3.NewFromConfig(cfg, opts...),
		conf:   conf,
	}, nil
}

func (store *s3Store) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := store.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(store.conf.Bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	return errors.Wrapf(err, "uploading object %s", key)
}

func (store *s3Store) Delete(ctx context.Context, keys ...string) error {
	for len(keys) > 0 {
		batch := keys
		if len(batch) > maxBatchSize {
			batch = batch[:maxBatchSize]
		}
		keys = keys[len(batch):]

		objects := make([]s3types.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			objects = append(objects, s3types.ObjectIdentifier{Key: aws.String(key)})
		}
		_, err := store.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(store.conf.Bucket),
			Delete: &s3types.Delete{
				Objects: objects,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return errors.Wrap(err, "deleting objects")
		}
	}
	return nil
}

func (store *s3Store) PublicURL(key string) string {
	if base := store.conf.PublicBaseURL; base != "" {
		return strings.TrimRight(base, "/") + "/" + key
	}
	if store.conf.Endpoint != "" {
		return strings.TrimRight(store.conf.Endpoint, "/") + "/" + store.conf.Bucket + "/" + key
	}
	return "https://" + store.conf.Bucket + ".s3." + store.conf.Region + ".amazonaws.com/" + key
}
