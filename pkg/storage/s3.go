package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

type s3Target struct {
	location string
	bucket   string
	key      string
	client   *s3.Client
	uploader *manager.Uploader
	logger   *zap.Logger
}

func newS3Target(ctx context.Context, location string, loc Location, opts Options) (*s3Target, error) {
	var cfgOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(cfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
	})

	return &s3Target{
		location: location,
		bucket:   loc.Bucket,
		key:      loc.Key,
		client:   client,
		uploader: uploader,
		logger:   opts.Logger,
	}, nil
}

func (t *s3Target) Location() string {
	return t.location
}

func (t *s3Target) Check(ctx context.Context) error {
	_, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(t.bucket)})
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "S3 bucket is not accessible").
			WithDetail("bucket", t.bucket)
	}
	return nil
}

func (t *s3Target) Exists(ctx context.Context) (bool, error) {
	_, err := t.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	return false, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to check S3 object").
		WithDetail("location", t.location)
}

func (t *s3Target) Create(ctx context.Context) (Object, error) {
	return &s3Object{ctx: ctx, target: t}, nil
}

func (t *s3Target) Open(ctx context.Context) (io.ReadCloser, error) {
	out, err := t.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(t.key),
	})
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to read S3 object").
			WithDetail("location", t.location)
	}
	return out.Body, nil
}

func (t *s3Target) Close() error {
	return nil
}

// s3Object buffers the file in memory and uploads it on commit. Multipart
// uploads are only completed once every part succeeds, so a failed commit
// leaves nothing at the key.
type s3Object struct {
	ctx    context.Context
	target *s3Target
	buf    bytes.Buffer
	done   bool
}

func (o *s3Object) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

func (o *s3Object) Commit() error {
	if o.done {
		return recoerrors.New(recoerrors.ErrorTypeFile, "object already finished")
	}
	o.done = true

	t := o.target
	result, err := t.uploader.Upload(o.ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(t.key),
		Body:        bytes.NewReader(o.buf.Bytes()),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to upload to S3").
			WithDetail("location", t.location)
	}
	t.logger.Info("uploaded object",
		zap.String("location", result.Location),
		zap.Int("bytes", o.buf.Len()))
	return nil
}

func (o *s3Object) Abort() error {
	o.done = true
	o.buf.Reset()
	return nil
}
