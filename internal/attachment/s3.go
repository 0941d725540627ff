package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const zipContentType = "application/zip"

// s3API defines the subset of the S3 client interface used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store reads report archives from an S3-compatible object store.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Store creates a new S3Store with the given client, bucket, and key prefix.
func NewS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

// NewS3StoreFromConfig builds a real AWS S3 client from cfg. Custom
// endpoints (MinIO and friends) switch to path-style addressing.
func NewS3StoreFromConfig(ctx context.Context, cfg Config) (*S3Store, error) {
	optFns := []func(*awsconfig.LoadOptions) error{}
	if cfg.S3Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("attachment: load aws config: %w", err)
	}

	var s3OptFns []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		endpoint := cfg.S3Endpoint
		s3OptFns = append(s3OptFns, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
			o.UsePathStyle = true
		})
	}

	return NewS3Store(s3.NewFromConfig(awsCfg, s3OptFns...), cfg.S3Bucket, cfg.S3Prefix), nil
}

func (s *S3Store) key(k string) string {
	return s.prefix + k
}

// Put uploads an archive.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	k := s.key(key)
	ct := zipContentType
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &k,
		Body:        bytes.NewReader(data),
		ContentType: &ct,
	})
	if err != nil {
		return fmt.Errorf("attachment: s3 put: %w", err)
	}
	return nil
}

// Get downloads an archive. Returns ErrNotFound if the object does not exist.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	k := s.key(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &k,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("attachment: s3 get: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("attachment: s3 read body: %w", err)
	}
	return data, nil
}
