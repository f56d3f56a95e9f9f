package remote

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Client relays staged files into an S3-compatible bucket. Remote paths
// map to object keys with the leading slash stripped.
type S3Client struct {
	bucket   string
	uploader *manager.Uploader
}

// S3Options configures the S3 backend. Endpoint is optional and supports
// S3-compatible stores (MinIO and the like); static keys are optional and
// fall back to the default AWS credential chain.
type S3Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// NewS3 builds an S3 remote client.
func NewS3(ctx context.Context, opt S3Options) (*S3Client, error) {
	if opt.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opt.Region),
	}
	if opt.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opt.AccessKey, opt.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opt.Endpoint != "" {
			o.BaseEndpoint = aws.String(opt.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Client{bucket: opt.Bucket, uploader: manager.NewUploader(client)}, nil
}

// Upload pushes the file at localPath to the bucket under remotePath.
func (c *S3Client) Upload(ctx context.Context, localPath, remotePath string) (Metadata, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Metadata{}, &UploadError{Kind: KindUnknown, Path: remotePath, Err: err}
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return Metadata{}, &UploadError{Kind: KindUnknown, Path: remotePath, Err: err}
	}

	key := strings.TrimPrefix(remotePath, "/")
	out, err := c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return Metadata{}, &UploadError{Kind: s3Kind(ctx, err), Path: remotePath, Err: err}
	}
	return Metadata{Path: remotePath, Size: st.Size(), ID: out.Location}, nil
}

// EnsureDir is a no-op: buckets have no directories.
func (c *S3Client) EnsureDir(ctx context.Context, remoteDir string) error {
	return nil
}

// s3Kind maps SDK errors to the failure taxonomy.
func s3Kind(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return KindUnauthorized
		case "NoSuchBucket", "NoSuchKey", "NotFound":
			return KindNotFound
		case "RequestTimeout":
			return KindTimeout
		default:
			return KindUnknown
		}
	}
	return KindTransport
}

var _ Client = (*S3Client)(nil)
