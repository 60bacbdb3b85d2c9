package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrymomot/trellis/pkg/id"
)

var (
	ErrInvalidConfig = errors.New("storage: invalid configuration")
	ErrNotConfigured = errors.New("storage: not configured")
	ErrEmptyFile     = errors.New("storage: file is empty")
	ErrFileTooLarge  = errors.New("storage: file exceeds size limit")
	ErrInvalidType   = errors.New("storage: file type not allowed")
	ErrNotFound      = errors.New("storage: file not found")
	ErrAccessDenied  = errors.New("storage: access denied")
	ErrUploadFailed  = errors.New("storage: upload failed")
	ErrDeleteFailed  = errors.New("storage: delete failed")
	ErrPresignFailed = errors.New("storage: presign failed")
)

// Storage keeps uploaded media such as images of Image fields.
type Storage interface {
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)
	Delete(ctx context.Context, key string) error
	// URL returns the public URL of key, or a presigned one with WithSigned.
	URL(ctx context.Context, key string, opts ...URLOption) (string, error)
}

// FileInfo describes a stored object.
type FileInfo struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Config configures S3-compatible storage.
type Config struct {
	Bucket    string `env:"STORAGE_BUCKET"`
	AccessKey string `env:"STORAGE_ACCESS_KEY"`
	SecretKey string `env:"STORAGE_SECRET_KEY"`
	Region    string `env:"STORAGE_REGION" envDefault:"us-east-1"`
	// Endpoint points at MinIO, R2 or another S3-compatible service.
	Endpoint string `env:"STORAGE_ENDPOINT"`
	// PublicURL is a CDN prefix used for public URLs.
	PublicURL string `env:"STORAGE_PUBLIC_URL"`
	PathStyle bool   `env:"STORAGE_PATH_STYLE" envDefault:"false"`
	MaxSize   int64  `env:"STORAGE_MAX_SIZE" envDefault:"10485760"`
}

// Enabled reports whether a bucket is configured.
func (c Config) Enabled() bool { return c.Bucket != "" }

func (c Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}

type putOptions struct {
	key         string
	prefix      string
	contentType string
	maxSize     int64
	allowed     []string
}

// Option configures Put.
type Option func(*putOptions)

// WithKey stores the object under key instead of a generated one.
func WithKey(key string) Option {
	return func(o *putOptions) { o.key = key }
}

// WithPrefix puts generated keys under prefix, e.g. "media".
func WithPrefix(prefix string) Option {
	return func(o *putOptions) { o.prefix = prefix }
}

// WithContentType skips content sniffing.
func WithContentType(ct string) Option {
	return func(o *putOptions) { o.contentType = ct }
}

// WithMaxSize rejects files larger than n bytes.
func WithMaxSize(n int64) Option {
	return func(o *putOptions) { o.maxSize = n }
}

// WithAllowedTypes accepts only matching content types. A pattern is an
// exact type or a family such as "image/*".
func WithAllowedTypes(patterns ...string) Option {
	return func(o *putOptions) { o.allowed = append(o.allowed, patterns...) }
}

// ImagesOnly accepts image/* uploads.
func ImagesOnly() Option {
	return WithAllowedTypes("image/*")
}

type urlOptions struct {
	expiry   time.Duration
	download string
	signed   bool
}

// URLOption configures URL.
type URLOption func(*urlOptions)

// DefaultURLExpiry is the lifetime of presigned URLs.
const DefaultURLExpiry = 15 * time.Minute

// WithSigned returns a presigned URL valid for expiry (DefaultURLExpiry
// when zero).
func WithSigned(expiry time.Duration) URLOption {
	return func(o *urlOptions) {
		o.signed = true
		if expiry > 0 {
			o.expiry = expiry
		}
	}
}

// WithDownload returns a presigned URL that downloads as filename.
func WithDownload(filename string) URLOption {
	return func(o *urlOptions) {
		o.signed = true
		o.download = filename
	}
}

// prepared is an upload that passed validation.
type prepared struct {
	key         string
	contentType string
	data        []byte
}

// prepare reads the upload, sniffs the content type, applies the limits
// and derives the key.
func prepare(r io.Reader, defaultMax int64, opts []Option) (*prepared, error) {
	o := &putOptions{maxSize: defaultMax}
	for _, opt := range opts {
		opt(o)
	}

	reader := r
	if o.maxSize > 0 {
		reader = io.LimitReader(r, o.maxSize+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Join(ErrUploadFailed, err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	if o.maxSize > 0 && int64(len(data)) > o.maxSize {
		return nil, fmt.Errorf("%w: max %d bytes", ErrFileTooLarge, o.maxSize)
	}

	ct := o.contentType
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	ct = normalizeType(ct)
	if len(o.allowed) > 0 && !typeAllowed(ct, o.allowed) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, ct)
	}

	key := o.key
	if key == "" {
		key = buildKey(o.prefix, ct)
	}
	return &prepared{key: key, contentType: ct, data: data}, nil
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

func buildKey(prefix, contentType string) string {
	name := id.NewULID() + extension(contentType)

	var segs []string
	for _, s := range strings.Split(prefix, "/") {
		s = strings.ReplaceAll(strings.TrimSpace(s), "..", "")
		s = unsafeSegment.ReplaceAllString(s, "_")
		if s != "" {
			segs = append(segs, url.PathEscape(s))
		}
	}
	return path.Join(append(segs, name)...)
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"image/avif":      ".avif",
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"video/mp4":       ".mp4",
}

func extension(contentType string) string {
	if ext, ok := extensions[contentType]; ok {
		return ext
	}
	return ".bin"
}

func normalizeType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func typeAllowed(ct string, patterns []string) bool {
	for _, p := range patterns {
		p = normalizeType(p)
		if p == ct {
			return true
		}
		if family, ok := strings.CutSuffix(p, "/*"); ok && strings.HasPrefix(ct, family+"/") {
			return true
		}
	}
	return false
}
