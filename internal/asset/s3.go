package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ErrInvalidS3Config is returned when bucket or region is missing
var ErrInvalidS3Config = errors.New("s3 bucket and region are required")

// S3API is the subset of the S3 client used by the store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures an S3 store
type S3Options struct {
	Bucket          string
	Region          string
	Endpoint        string // S3-compatible services
	Prefix          string
	PublicURL       string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	MaxSize         int64
}

// S3 stores assets in an S3 bucket
type S3 struct {
	client  S3API
	bucket  string
	prefix  string
	baseURL string
	maxSize int64
}

// NewS3 creates a bucket store using the default AWS credential chain, or
// static credentials when both keys are set.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" || opts.Region == "" {
		return nil, ErrInvalidS3Config
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return NewS3WithClient(client, opts), nil
}

// NewS3WithClient creates a bucket store on an existing client
func NewS3WithClient(client S3API, opts S3Options) *S3 {
	baseURL := opts.PublicURL
	if baseURL == "" {
		if opts.Endpoint != "" {
			baseURL = strings.TrimSuffix(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}
	return &S3{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  strings.Trim(opts.Prefix, "/"),
		baseURL: baseURL,
		maxSize: opts.MaxSize,
	}
}

// Put uploads r to the bucket
func (s *S3) Put(ctx context.Context, r io.Reader) (*Asset, error) {
	u, err := read(r, s.maxSize)
	if err != nil {
		return nil, err
	}

	key := u.key
	if s.prefix != "" {
		key = s.prefix + "/" + key
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          u.body(),
		ContentType:   aws.String(u.contentType),
		ContentLength: aws.Int64(int64(len(u.data))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("failed to upload asset (code: %s): %w", apiErr.ErrorCode(), err)
		}
		return nil, fmt.Errorf("failed to upload asset: %w", err)
	}

	return &Asset{
		Key:         key,
		URL:         joinURL(s.baseURL, key),
		ContentType: u.contentType,
		Size:        int64(len(u.data)),
	}, nil
}
