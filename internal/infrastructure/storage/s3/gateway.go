// Package s3 is the object storage gateway for avatar images. It talks to any
// S3-compatible endpoint (AWS, MinIO, Supabase storage) and derives public URLs
// without network calls.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/99minutos/accounts-api/internal/core/domain"
	"github.com/99minutos/accounts-api/internal/core/ports"
)

const (
	defaultTimeout     = 20 * time.Second
	defaultMaxAttempts = 3
	cacheControl       = "max-age=3600"
)

// s3API is the part of *s3.Client the gateway uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config describes the bucket. PublicURL is the prefix objects are served
// from; when empty it is derived from Endpoint or the AWS virtual-host form.
type Config struct {
	Endpoint    string
	Region      string
	AccessKey   string
	SecretKey   string
	Bucket      string
	PublicURL   string
	Timeout     time.Duration
	MaxAttempts int
}

type Gateway struct {
	client     s3API
	bucket     string
	publicBase string
	timeout    time.Duration
	now        func() time.Time
	newID      func() string
}

// New builds an S3 client from cfg. Static credentials are used when an
// access key is configured, otherwise the default AWS chain applies.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(attempts),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newGateway(client, cfg), nil
}

func newGateway(client s3API, cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gateway{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: publicBase(cfg),
		timeout:    timeout,
		now:        time.Now,
		newID:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

func publicBase(cfg Config) string {
	base := strings.TrimRight(cfg.PublicURL, "/")
	switch {
	case base != "":
	case cfg.Endpoint != "":
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
	return base + "/"
}

// Put uploads data under <folder>/[<owner>-]<unix millis>-<random hex><ext>.
// Existing keys are never overwritten.
func (g *Gateway) Put(ctx context.Context, in ports.PutObjectInput) (*domain.StoredAsset, error) {
	name := fmt.Sprintf("%d-%s%s", g.now().UnixMilli(), g.newID(), in.Extension)
	if in.OwnerID != "" {
		name = in.OwnerID + "-" + name
	}
	key := name
	if folder := strings.Trim(in.Folder, "/"); folder != "" {
		key = folder + "/" + name
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(g.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(in.Data),
		ContentLength: aws.Int64(int64(len(in.Data))),
		ContentType:   aws.String(in.ContentType),
		CacheControl:  aws.String(cacheControl),
		IfNoneMatch:   aws.String("*"),
	})
	// Keys are unique per call, so a failed precondition means an SDK retry
	// found the object its first attempt already wrote.
	if err != nil && !hasCode(err, "PreconditionFailed") {
		return nil, &domain.StorageError{Op: "put", Err: err}
	}

	return &domain.StoredAsset{
		Path:         key,
		URL:          g.PublicURLFor(key),
		Name:         name,
		ContentType:  in.ContentType,
		Size:         int64(len(in.Data)),
		LastModified: g.now().UTC(),
	}, nil
}

// Delete removes key. A key that is already gone is not an error.
func (g *Gateway) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isNotFound(err) {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	return nil
}

func isNotFound(err error) bool {
	return hasCode(err, "NoSuchKey", "NotFound")
}

func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}

// List returns every object under folder.
func (g *Gateway) List(ctx context.Context, folder string) ([]domain.StoredAsset, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(g.bucket)}
	if prefix := strings.Trim(folder, "/"); prefix != "" {
		input.Prefix = aws.String(prefix + "/")
	}

	assets := make([]domain.StoredAsset, 0)
	pager := s3.NewListObjectsV2Paginator(g.client, input)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &domain.StorageError{Op: "list", Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}
			assets = append(assets, domain.StoredAsset{
				Path:         key,
				URL:          g.PublicURLFor(key),
				Name:         path.Base(key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	return assets, nil
}

func (g *Gateway) PublicURLFor(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return g.publicBase + strings.Join(segments, "/")
}

// PathFromURL recovers the object key from a URL produced by PublicURLFor.
func (g *Gateway) PathFromURL(rawURL string) (string, bool) {
	rest, ok := strings.CutPrefix(rawURL, g.publicBase)
	if !ok || rest == "" || strings.ContainsAny(rest, "?#") {
		return "", false
	}
	key, err := url.PathUnescape(rest)
	if err != nil || strings.HasPrefix(key, "/") {
		return "", false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", false
		}
	}
	return key, true
}

func (g *Gateway) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(g.bucket)}); err != nil {
		return &domain.StorageError{Op: "head bucket", Err: err}
	}
	return nil
}
