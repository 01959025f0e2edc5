package storage

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

type gcsTarget struct {
	location string
	client   *storage.Client
	bucket   *storage.BucketHandle
	object   *storage.ObjectHandle
	logger   *zap.Logger
}

func newGCSTarget(ctx context.Context, location string, loc Location, opts Options) (*gcsTarget, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to create GCS client")
	}

	bucket := client.Bucket(loc.Bucket)
	return &gcsTarget{
		location: location,
		client:   client,
		bucket:   bucket,
		object:   bucket.Object(loc.Key),
		logger:   opts.Logger,
	}, nil
}

func (t *gcsTarget) Location() string {
	return t.location
}

func (t *gcsTarget) Check(ctx context.Context) error {
	if _, err := t.bucket.Attrs(ctx); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "GCS bucket is not accessible").
			WithDetail("location", t.location)
	}
	return nil
}

func (t *gcsTarget) Exists(ctx context.Context) (bool, error) {
	_, err := t.object.Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to check GCS object").
			WithDetail("location", t.location)
	}
}

func (t *gcsTarget) Create(ctx context.Context) (Object, error) {
	ctx, cancel := context.WithCancel(ctx)
	w := t.object.NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	return &gcsObject{w: w, cancel: cancel, target: t}, nil
}

func (t *gcsTarget) Open(ctx context.Context) (io.ReadCloser, error) {
	r, err := t.object.NewReader(ctx)
	if err != nil {
		return nil, recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to read GCS object").
			WithDetail("location", t.location)
	}
	return r, nil
}

func (t *gcsTarget) Close() error {
	return t.client.Close()
}

// gcsObject streams to a GCS writer. The object only becomes visible when
// the writer closes successfully; cancelling its context abandons it.
type gcsObject struct {
	w      *storage.Writer
	cancel context.CancelFunc
	target *gcsTarget
	done   bool
}

func (o *gcsObject) Write(p []byte) (int, error) {
	return o.w.Write(p)
}

func (o *gcsObject) Commit() error {
	if o.done {
		return recoerrors.New(recoerrors.ErrorTypeFile, "object already finished")
	}
	o.done = true
	defer o.cancel()

	if err := o.w.Close(); err != nil {
		return recoerrors.Wrap(err, recoerrors.ErrorTypeConnection, "failed to upload to GCS").
			WithDetail("location", o.target.location)
	}
	o.target.logger.Info("uploaded object",
		zap.String("location", o.target.location),
		zap.Int64("bytes", o.w.Attrs().Size))
	return nil
}

func (o *gcsObject) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	o.cancel()
	_ = o.w.Close()
	return nil
}
