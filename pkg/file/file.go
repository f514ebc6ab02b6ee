package file

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Storage is a flat key/value blob store with public URLs.
type Storage interface {
	Put(ctx context.Context, key string, body []byte, opts ...PutOption) (*Object, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// Object describes a stored blob.
type Object struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

type putOptions struct {
	contentType  string
	publicRead   bool
	cacheControl string
}

type PutOption func(*putOptions)

// WithContentType overrides content sniffing.
func WithContentType(ct string) PutOption {
	return func(o *putOptions) { o.contentType = ct }
}

// WithPublicRead marks the object world-readable (S3 canned ACL public-read).
func WithPublicRead() PutOption {
	return func(o *putOptions) { o.publicRead = true }
}

func WithCacheControl(v string) PutOption {
	return func(o *putOptions) { o.cacheControl = v }
}

func resolvePutOptions(body []byte, opts []PutOption) putOptions {
	var o putOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.contentType == "" {
		o.contentType = DetectContentType(body)
	}
	return o
}

// DetectContentType sniffs the MIME type from the leading bytes of body.
func DetectContentType(body []byte) string {
	return http.DetectContentType(body)
}

// IsImage reports whether body sniffs as an image type.
func IsImage(body []byte) bool {
	return strings.HasPrefix(DetectContentType(body), "image/")
}

// CleanKey normalises key and rejects traversal and empty keys.
func CleanKey(key string) (string, error) {
	key = strings.Trim(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return key, nil
}

func joinURL(base, key string) string {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + key
}
