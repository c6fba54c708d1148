// Package storage copies finished audio segments to object storage.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/apresai/narrator/internal/observability"
)

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads files under bucket/prefix/<job>/<file name>.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Uploader creates an uploader with the given client.
func NewS3Uploader(client PutObjectAPI, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewDefaultS3Uploader creates an uploader backed by the default AWS
// credential chain.
func NewDefaultS3Uploader(ctx context.Context, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := observability.LoadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// ObjectKey returns the key a file of job is stored under.
func (s *S3Uploader) ObjectKey(job, file string) string {
	return path.Join(s.prefix, job, filepath.Base(file))
}

// Upload stores the file at p and returns its object key.
func (s *S3Uploader) Upload(ctx context.Context, job, p string) (string, error) {
	key := s.ObjectKey(job, p)

	f, err := os.Open(p)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", p, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", p, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(contentType(p)),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return key, nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".mp3":
		return "audio/mpeg"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
