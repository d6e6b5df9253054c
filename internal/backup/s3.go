// Package backup ships store snapshots to S3 compatible object storage.
package backup

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/srbio/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}

	presignGetObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return s3.NewPresignClient(c).PresignGetObject(ctx, in, optFns...)
	}
)

// Options configures the target bucket. An empty BaseEndpoint uses AWS.
type Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// Result locates an uploaded snapshot.
type Result struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"download_url,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

type S3Uploader struct {
	opts Options
}

func NewS3Uploader(opts Options) *S3Uploader {
	return &S3Uploader{opts: opts}
}

// Configured reports whether a bucket was set up.
func (u *S3Uploader) Configured() bool {
	return u != nil && u.opts.Bucket != ""
}

// SnapshotKey names a snapshot taken at t.
func SnapshotKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("backups/%d/%02d/%02d/srbio-%s-%s.db", t.Year(), t.Month(), t.Day(), t.Format("150405"), uuid.NewString()[:8])
}

func (u *S3Uploader) client(ctx context.Context) (*s3.Client, error) {
	optFns := []func(*config.LoadOptions) error{config.WithRegion(u.opts.Region)}
	if u.opts.AccessKey != "" {
		optFns = append(optFns, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(u.opts.AccessKey, u.opts.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if u.opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(u.opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Upload stores the file at path under key and returns a presigned link
// valid for 15 minutes.
func (u *S3Uploader) Upload(ctx context.Context, key, path string) (*Result, error) {
	if !u.Configured() {
		return nil, fmt.Errorf("no backup bucket configured: %w", common.ErrorUnsupported)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	c, err := u.client(ctx)
	if err != nil {
		return nil, err
	}

	if err := putObject(c, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String("application/vnd.sqlite3"),
	}); err != nil {
		return nil, fmt.Errorf("failed to upload snapshot: %w", err)
	}

	res := &Result{Bucket: u.opts.Bucket, Key: key, Size: st.Size(), UploadedAt: time.Now().UTC()}

	req, err := presignGetObject(c, ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(15*time.Minute))
	if err == nil {
		res.DownloadURL = req.URL
	}
	return res, nil
}
