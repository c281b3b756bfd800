package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/create-post-pipeline/internal/filehandler"
)

// projectTag is the URL-encoded object tagging string for cost allocation.
const projectTag = "Project=create-post-pipeline"

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store is an ObjectStore backed by an S3 bucket.
type S3Store struct {
	client    S3API
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
}

// NewS3Store creates an S3Store. Object URLs are formed from baseURL when set
// (a CDN origin, for example), otherwise from the bucket's virtual-hosted
// endpoint in region.
func NewS3Store(client S3API, bucket, region, baseURL string) *S3Store {
	if baseURL == "" {
		if region == "" {
			baseURL = fmt.Sprintf("https://%s.s3.amazonaws.com", bucket)
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
		}
	}
	return &S3Store{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// WithPresigner enables PresignedURL.
func (s *S3Store) WithPresigner(p *s3.PresignClient) *S3Store {
	s.presigner = p
	return s
}

// Bucket returns the bucket name.
func (s *S3Store) Bucket() string { return s.bucket }

// Put uploads localFile to key objectPath with the project cost tag.
func (s *S3Store) Put(ctx context.Context, objectPath, localFile string) (string, error) {
	key, err := cleanPath(objectPath)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat upload source: %w", err)
	}

	start := time.Now()
	contentType, err := filehandler.GetMIMEType(filepath.Ext(localFile))
	if err != nil {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(contentType),
		Tagging:       aws.String(projectTag),
	})
	if err != nil {
		return "", fmt.Errorf("S3 PutObject: %w", err)
	}

	log.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Int64("bytes", info.Size()).
		Dur("elapsed", time.Since(start)).
		Msg("Object uploaded to S3")
	return s.URL(key), nil
}

// Delete removes key objectPath. S3 treats deleting a missing key as success.
func (s *S3Store) Delete(ctx context.Context, objectPath string) error {
	key, err := cleanPath(objectPath)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject: %w", err)
	}
	log.Info().Str("bucket", s.bucket).Str("key", key).Msg("Object deleted from S3")
	return nil
}

// URL returns the public URL of key.
func (s *S3Store) URL(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + "/" + strings.Join(segments, "/")
}

// PresignedURL creates a time-limited GET URL for key.
func (s *S3Store) PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.presigner == nil {
		return "", errors.New("presigner not configured")
	}
	result, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}

// Download copies the object at key into localPath.
func (s *S3Store) Download(ctx context.Context, key, localPath string) error {
	log.Debug().Str("bucket", s.bucket).Str("key", key).Str("localPath", localPath).Msg("Downloading from S3")
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket), Key: aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("S3 GetObject %s: %w", key, os.ErrNotExist)
		}
		return fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, result.Body); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("download: %w", err)
	}
	return f.Close()
}
