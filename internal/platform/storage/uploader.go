package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
)

var (
	errUploaderClient = errors.New("storage uploader: client is required")
	errUploaderBucket = errors.New("storage uploader: bucket name is required")
	errEmptyObject    = errors.New("storage uploader: object name is required")
	errEmptyPayload   = errors.New("storage uploader: payload is empty")
)

// Uploader writes rendered image variants to Cloud Storage and reports their
// public URLs. A nil Uploader is valid and reports itself as unconfigured so
// the import pipeline can fall back to placeholder URLs.
type Uploader struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

// NewUploader constructs an Uploader for the given bucket. The public base URL
// is used verbatim as the prefix of returned object URLs.
func NewUploader(client *gcs.Client, bucket, publicBaseURL string) (*Uploader, error) {
	if client == nil {
		return nil, errUploaderClient
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errUploaderBucket
	}
	baseURL := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &Uploader{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// Configured reports whether the uploader can actually write objects.
func (u *Uploader) Configured() bool {
	return u != nil && u.client != nil && u.bucket != ""
}

// Upload writes the payload under the given object key and returns the public
// URL of the stored object.
func (u *Uploader) Upload(ctx context.Context, object string, payload []byte, contentType string) (string, error) {
	if !u.Configured() {
		return "", errUploaderClient
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", errEmptyObject
	}
	if len(payload) == 0 {
		return "", errEmptyPayload
	}

	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	writer.CacheControl = "public, max-age=86400"
	if _, err := writer.Write(payload); err != nil {
		writer.Close()
		return "", fmt.Errorf("storage uploader: write %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("storage uploader: finalize %s: %w", object, err)
	}

	return u.baseURL + "/" + object, nil
}
