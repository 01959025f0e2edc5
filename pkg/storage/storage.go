// Package storage resolves output locations to local files or cloud objects
// and writes them atomically: nothing is visible at the location until
// Commit succeeds.
package storage

import (
	"context"
	"io"
	"net/url"
	"strings"

	"go.uber.org/zap"

	recoerrors "github.com/ajitpratap0/recoconv/pkg/errors"
)

// Scheme identifies a storage backend.
type Scheme string

const (
	// Local is the local file system
	Local Scheme = "file"
	// S3 is Amazon S3, locations "s3://bucket/key"
	S3 Scheme = "s3"
	// GCS is Google Cloud Storage, locations "gs://bucket/key"
	GCS Scheme = "gs"
)

// Object is a pending write. Data written is only published by Commit;
// Abort discards it. Exactly one of the two must be called.
type Object interface {
	io.Writer
	Commit() error
	Abort() error
}

// Target is one resolved location.
type Target interface {
	// Location returns the location string the target was opened with.
	Location() string
	// Check verifies the containing directory or bucket exists.
	Check(ctx context.Context) error
	// Exists reports whether something is already stored at the location.
	Exists(ctx context.Context) (bool, error)
	// Create starts a pending write to the location.
	Create(ctx context.Context) (Object, error)
	// Open reads the stored object.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Close releases backend clients.
	Close() error
}

// Options configures cloud clients.
type Options struct {
	// Region is the AWS region for s3 locations.
	Region string
	// CredentialsFile is a Google service account key for gs locations.
	CredentialsFile string
	// PartSize is the S3 multipart upload part size in bytes.
	PartSize int64
	Logger   *zap.Logger
}

// Location is a parsed location string.
type Location struct {
	Scheme Scheme
	Bucket string
	Key    string
	// Path is the file system path for local locations.
	Path string
}

// ParseLocation splits a location into scheme, bucket and key. Plain paths
// and file:// URLs are local.
func ParseLocation(location string) (Location, error) {
	if location == "" {
		return Location{}, recoerrors.New(recoerrors.ErrorTypeConfig, "empty location")
	}
	if !strings.Contains(location, "://") {
		return Location{Scheme: Local, Path: location}, nil
	}

	u, err := url.Parse(location)
	if err != nil {
		return Location{}, recoerrors.Wrap(err, recoerrors.ErrorTypeConfig, "invalid location").
			WithDetail("location", location)
	}
	switch Scheme(u.Scheme) {
	case Local:
		return Location{Scheme: Local, Path: u.Path}, nil
	case S3, GCS:
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return Location{}, recoerrors.New(recoerrors.ErrorTypeConfig, "location needs a bucket and an object key").
				WithDetail("location", location)
		}
		return Location{Scheme: Scheme(u.Scheme), Bucket: u.Host, Key: key}, nil
	default:
		return Location{}, recoerrors.New(recoerrors.ErrorTypeConfig, "unsupported location scheme").
			WithDetail("scheme", u.Scheme)
	}
}

// Open resolves location to a target, creating cloud clients as needed.
func Open(ctx context.Context, location string, opts Options) (Target, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	switch loc.Scheme {
	case S3:
		return newS3Target(ctx, location, loc, opts)
	case GCS:
		return newGCSTarget(ctx, location, loc, opts)
	default:
		return newLocalTarget(location, loc.Path, opts.Logger), nil
	}
}
