// Package reference loads the résumé text that grounds every lens prompt.
package reference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/glarson/lensproxy/internal/config"
)

// Source loads the reference document. origin is the scheme and host of the current request;
// sources that reach the network never fetch from it directly.
type Source interface {
	Name() string
	Load(ctx context.Context, origin string) (string, error)
}

var (
	ErrNoOrigin = errors.New("reference base URL is not configured")
	ErrEmpty    = errors.New("reference document is empty")
)

// StatusError reports a non-success response from the asset server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

func New(ctx context.Context, cfg *config.ReferenceConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceOrigin:
		return NewOrigin(cfg.BaseURL, cfg.Path, &http.Client{}), nil
	case config.SourceFile:
		return NewFile(cfg.Dir, cfg.Path), nil
	case config.SourceS3:
		return NewS3(ctx, &cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownSource, cfg.Source)
	}
}

// Origin fetches the document from the site's own public origin. The base URL comes from
// configuration; the Host and X-Forwarded-* headers of a request are caller controlled.
type Origin struct {
	base   string
	path   string
	client *http.Client
}

func NewOrigin(baseURL, path string, client *http.Client) *Origin {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Origin{base: strings.TrimRight(baseURL, "/"), path: path, client: client}
}

func (o *Origin) Name() string { return config.SourceOrigin }

// Load ignores the request origin and always fetches from the configured base URL.
func (o *Origin) Load(ctx context.Context, _ string) (string, error) {
	if o.base == "" {
		return "", ErrNoOrigin
	}
	url := o.base + o.path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return readText(resp.Body)
}

// File reads the document from the static directory on disk.
type File struct {
	path string
}

func NewFile(dir, path string) *File {
	return &File{path: filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(path, "/")))}
}

func (f *File) Name() string { return config.SourceFile }

func (f *File) Load(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fh, err := os.Open(f.path)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	return readText(fh)
}

type objectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 reads the document from an S3 bucket or a Cloudflare R2 bucket.
type S3 struct {
	client objectGetter
	bucket string
	key    string
}

func NewS3(ctx context.Context, cfg *config.S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	slog.Info("Using S3 reference source", "bucket", cfg.Bucket, "key", cfg.Key, "endpoint", cfg.Endpoint)
	return newS3WithClient(client, cfg.Bucket, cfg.Key), nil
}

func newS3WithClient(client objectGetter, bucket, key string) *S3 {
	return &S3{client: client, bucket: bucket, key: strings.TrimPrefix(key, "/")}
}

func (s *S3) Name() string { return config.SourceS3 }

func (s *S3) Load(ctx context.Context, _ string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get object s3://%s/%s: %w", s.bucket, s.key, err)
	}
	defer out.Body.Close()
	return readText(out.Body)
}

func readText(r io.Reader) (string, error) {
	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, r); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	text := strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}
