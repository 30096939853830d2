package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 stores archive objects in a single bucket on an S3-compatible backend
// (AWS S3 or MinIO). Keys map to object keys under an optional prefix.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3Config holds explicit construction parameters, mostly for tests.
// Production wiring reads the environment via OpenS3FromEnv.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	Endpoint  string // optional, enables custom endpoints such as MinIO
	PathStyle bool
}

// NewS3 creates an S3 archive store from explicit config.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// Environment variables:
//
//	REQCORE_ARCHIVE_S3_BUCKET=<bucket> (required)
//	REQCORE_ARCHIVE_S3_REGION=<region> (default us-east-1)
//	REQCORE_ARCHIVE_S3_PREFIX=<key prefix> (optional)
//	REQCORE_ARCHIVE_S3_ENDPOINT=<url> (optional)
//	REQCORE_ARCHIVE_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY (optional, default chain)

// OpenS3FromEnv constructs an S3 archive store from process environment.
func OpenS3FromEnv(ctx context.Context) (*S3, error) {
	bucket := os.Getenv("REQCORE_ARCHIVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("REQCORE_ARCHIVE_S3_BUCKET required for s3 archive driver")
	}
	return NewS3(ctx, S3Config{
		Bucket:    bucket,
		Region:    os.Getenv("REQCORE_ARCHIVE_S3_REGION"),
		Prefix:    os.Getenv("REQCORE_ARCHIVE_S3_PREFIX"),
		Endpoint:  os.Getenv("REQCORE_ARCHIVE_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("REQCORE_ARCHIVE_S3_PATH_STYLE"), "true"),
	})
}

func (s *S3) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *S3) Put(ctx context.Context, key string, payload []byte) error {
	if key == "" {
		return fmt.Errorf("archive: empty key")
	}
	object := s.key(key)
	contentType := "application/json"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &object,
		Body:        bytes.NewReader(payload),
		ContentType: &contentType,
	})
	return err
}

func (s *S3) Get(ctx context.Context, key string) ([]byte, error) {
	object := s.key(key)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &object})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	var token *string
	prefix := s.prefix
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			Prefix:            &prefix,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if s.prefix != "" {
				key = strings.TrimPrefix(key, s.prefix+"/")
			}
			keys = append(keys, key)
		}
		if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
			token = out.NextContinuationToken
			continue
		}
		break
	}
	sort.Strings(keys)
	return keys, nil
}
