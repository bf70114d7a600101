// Package s3 stores registration attachments in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/youthcouncil/portal/internal/core/domain"
	"github.com/youthcouncil/portal/internal/core/ports"
)

// MaxAttachmentSize caps a single upload at 5 MiB.
const MaxAttachmentSize = 5 << 20

const keyPrefix = "attachments/"

var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

// Config holds bucket coordinates and optional static credentials.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AttachmentStore implements ports.AttachmentStore.
type AttachmentStore struct {
	client objectPutter
	bucket string
}

// New loads AWS configuration and builds the store. A custom endpoint
// switches the client to path-style addressing for MinIO and friends.
func New(ctx context.Context, cfg Config) (*AttachmentStore, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, cfg.Bucket), nil
}

func newStore(client objectPutter, bucket string) *AttachmentStore {
	return &AttachmentStore{client: client, bucket: bucket}
}

// Put validates and uploads a, returning the object key.
func (s *AttachmentStore) Put(ctx context.Context, a ports.Attachment) (string, error) {
	if a.Size > MaxAttachmentSize {
		return "", fmt.Errorf("%w: larger than %d bytes", domain.ErrAttachmentRejected, MaxAttachmentSize)
	}

	data, err := io.ReadAll(io.LimitReader(a.Body, MaxAttachmentSize+1))
	if err != nil {
		return "", fmt.Errorf("read attachment: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrAttachmentRejected)
	}
	if len(data) > MaxAttachmentSize {
		return "", fmt.Errorf("%w: larger than %d bytes", domain.ErrAttachmentRejected, MaxAttachmentSize)
	}

	contentType := detectType(a.ContentType, data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported type %q", domain.ErrAttachmentRejected, contentType)
	}

	key := keyPrefix + uuid.NewString() + ext
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		Metadata: map[string]string{
			"original-filename": path.Base(a.Filename),
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload attachment: %w", err)
	}
	return key, nil
}

// detectType trusts the sniffed type over the declared one.
func detectType(declared string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if _, ok := allowedTypes[sniffed]; ok {
		return sniffed
	}
	if sniffed == "application/octet-stream" {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return sniffed
}
