// Package media uploads company images and hands back the URL stored in
// imageUrl.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted image, in bytes.
const MaxImageSize = 1 << 20

const basePath = "companies/"

var (
	ErrEmpty    = errors.New("image is empty")
	ErrNotImage = errors.New("please select a valid image file")
	ErrTooLarge = fmt.Errorf("file size should not exceed %dMB", MaxImageSize>>20)
)

// PutObjectAPI is the part of the S3 client the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader stores images in a bucket.
type S3Uploader struct {
	client PutObjectAPI
	bucket string
	region string
	newKey func() string
}

// NewS3Uploader builds an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, bucket, region string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, errors.New("bucket is empty")
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewUploader(s3.NewFromConfig(cfg), bucket, cfg.Region), nil
}

// NewUploader wraps an existing S3 client.
func NewUploader(client PutObjectAPI, bucket, region string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		region: region,
		newKey: func() string { return uuid.New().String() },
	}
}

// Upload checks that data is an image of at most MaxImageSize bytes, stores
// it under a fresh key and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", ErrNotImage
	}

	key := basePath + u.newKey() + mtype.Extension()
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(mtype.String()),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	return u.URL(key), nil
}

// URL is the virtual-hosted style address of key.
func (u *S3Uploader) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
