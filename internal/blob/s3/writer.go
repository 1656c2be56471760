package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/oddslab/syntharb/internal/domain"
)

// Writer implements domain.BlobWriter and domain.BlobReader against an
// S3-compatible bucket.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer backed by the given client.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// Write stores data at the given path in the bucket.
func (w *Writer) Write(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.client.bucket),
		Key:    aws.String(path),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := w.client.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// Read returns a reader for the object at the given path. The caller must
// close it.
func (w *Writer) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	out, err := w.client.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(w.client.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, fmt.Errorf("s3blob: get %s: %w", path, err)
	}
	return out.Body, nil
}

// List returns metadata for all objects under the given prefix.
func (w *Writer) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	paginator := s3.NewListObjectsV2Paginator(w.client.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(w.client.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			info := domain.BlobInfo{
				Path: aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	return infos, nil
}

var (
	_ domain.BlobWriter = (*Writer)(nil)
	_ domain.BlobReader = (*Writer)(nil)
)
