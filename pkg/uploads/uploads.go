// Package uploads signs object-storage upload URLs so clients can PUT
// attachments directly to the bucket without routing bytes through the API.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	ErrInvalidConfig = errors.New("invalid uploads configuration")
	ErrFailedToSign  = errors.New("failed to sign upload url")
)

// Config holds object-storage configuration. Endpoint and ForcePathStyle
// support S3-compatible services like MinIO or R2. An empty bucket means
// uploads are disabled; the signing endpoint then reports a configuration
// error instead of silently succeeding.
type Config struct {
	Bucket         string        `env:"UPLOADS_BUCKET"`
	Region         string        `env:"UPLOADS_REGION"`
	AccessKeyID    string        `env:"UPLOADS_ACCESS_KEY_ID"`
	SecretKey      string        `env:"UPLOADS_SECRET_KEY"`
	Endpoint       string        `env:"UPLOADS_ENDPOINT"`
	ForcePathStyle bool          `env:"UPLOADS_FORCE_PATH_STYLE" envDefault:"false"`
	URLTTL         time.Duration `env:"UPLOADS_URL_TTL" envDefault:"15m"`
}

// SignedUpload is a presigned PUT the client can use directly.
type SignedUpload struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Signer produces presigned upload URLs for a single bucket.
type Signer struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
}

// NewSigner builds a signer from configuration, creating the underlying S3
// client with static credentials.
func NewSigner(ctx context.Context, cfg Config) (*Signer, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, ErrInvalidConfig
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewSignerWithClient(s3.NewPresignClient(client), cfg.Bucket, cfg.URLTTL), nil
}

// NewSignerWithClient wires a pre-built presign client, for tests.
func NewSignerWithClient(presign *s3.PresignClient, bucket string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Signer{presign: presign, bucket: bucket, ttl: ttl}
}

// SignUpload returns a presigned PUT URL for the given object key. Keys are
// namespaced by user to stop one user overwriting another's objects.
func (s *Signer) SignUpload(ctx context.Context, userID, filename, contentType string) (*SignedUpload, error) {
	if userID == "" || filename == "" {
		return nil, ErrInvalidConfig
	}
	if strings.Contains(filename, "..") {
		return nil, fmt.Errorf("%w: filename must not contain path traversal", ErrInvalidConfig)
	}

	key := fmt.Sprintf("uploads/%s/%s", userID, filename)

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	signed, err := s.presign.PresignPutObject(ctx, input, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return nil, errors.Join(ErrFailedToSign, err)
	}

	return &SignedUpload{
		URL:       signed.URL,
		Method:    signed.Method,
		Key:       key,
		ExpiresAt: time.Now().Add(s.ttl),
	}, nil
}
