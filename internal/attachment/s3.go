package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"inkwiki/config"
	"inkwiki/pkg/apperr"
)

// S3Client talks to an S3-compatible object store. Every call takes bucket
// and region explicitly so attachments recorded against an earlier
// configuration can still be addressed; nothing about a call depends on
// client state beyond credentials.
type S3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	timeout   time.Duration
}

func NewS3Client(ctx context.Context, cfg config.S3Config) (*S3Client, error) {
	if !cfg.Enable {
		return nil, fmt.Errorf("%w: S3 is not enabled in configuration", apperr.ErrConfiguration)
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: S3 credentials or bucket missing", apperr.ErrConfiguration)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: loading S3 config: %v", apperr.ErrConfiguration, err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &S3Client{client: client, presigner: s3.NewPresignClient(client), timeout: timeout}, nil
}

// PresignPut signs a time-limited PUT URL. No bytes are uploaded and nothing
// is persisted here; the caller hands the URL to the browser.
func (c *S3Client) PresignPut(ctx context.Context, bucket, key, contentType string, ttl time.Duration) (string, error) {
	req, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", classifyS3Error(err)
	}
	return req.URL, nil
}

// DeleteObject removes key from bucket, overriding the client's region per
// call so deletes against historical buckets still sign correctly. The call
// carries a bounded timeout.
func (c *S3Client) DeleteObject(ctx context.Context, bucket, key, region string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(o *s3.Options) {
		if region != "" {
			o.Region = region
		}
	})
	return classifyS3Error(err)
}

// classifyS3Error folds SDK errors into the apperr taxonomy so the cascade
// path can tell a definitive not-found from a timeout or an auth failure.
func classifyS3Error(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperr.ErrTimeout, err)
	}
	var noKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %v", apperr.ErrBackendUnavailable, err)
}

// ObjectKey derives the storage key for an upload. Hashing the filename
// keeps keys collision-resistant while staying stable for the same name.
func ObjectKey(filename string) string {
	sum := sha256.Sum256([]byte(filename))
	return "tiddlers/" + hex.EncodeToString(sum[:]) + "." + fileExt(filename)
}

func fileExt(filename string) string {
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx+1 < len(filename) {
		return filename[idx+1:]
	}
	return "bin"
}
