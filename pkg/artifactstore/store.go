// Package artifactstore reads and publishes model artifacts. Locations are
// URIs: file:///path (or a bare path), s3://bucket/key and
// redis://host:port/key.
package artifactstore

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	simerrors "github.com/o2csim/o2csim/pkg/errors"
)

// Source opens a stored artifact for reading.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	Name() string
}

// Sink publishes an artifact.
type Sink interface {
	Put(ctx context.Context, data []byte) error
	Name() string
}

// Store is a location that can be read and written.
type Store interface {
	Source
	Sink
	Close() error
}

// Scheme is a supported URI scheme.
type Scheme string

const (
	SchemeFile  Scheme = "file"
	SchemeS3    Scheme = "s3"
	SchemeRedis Scheme = "redis"
)

// Location is a parsed artifact URI.
type Location struct {
	Scheme Scheme
	// Host is the bucket for s3 and host:port for redis.
	Host string
	// Path is the file path, object key or redis key.
	Path string
}

// String renders l as a URI.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Path
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Host, l.Path)
}

// ParseURI parses an artifact location. A string without a scheme is a file path.
func ParseURI(uri string) (Location, error) {
	if uri == "" {
		return Location{}, simerrors.New(simerrors.CodeSourceUnavailable, "empty artifact uri")
	}
	if !strings.Contains(uri, "://") {
		return Location{Scheme: SchemeFile, Path: uri}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "malformed artifact uri").
			WithContext("uri", uri)
	}

	loc := Location{Scheme: Scheme(strings.ToLower(u.Scheme)), Host: u.Host}
	switch loc.Scheme {
	case SchemeFile:
		loc.Path = u.Host + u.Path
		loc.Host = ""
	case SchemeS3, SchemeRedis:
		loc.Path = strings.TrimPrefix(u.Path, "/")
		if loc.Host == "" || loc.Path == "" {
			return Location{}, simerrors.New(simerrors.CodeSourceUnavailable, "artifact uri needs host and key").
				WithContext("uri", uri)
		}
	default:
		return Location{}, simerrors.New(simerrors.CodeSourceUnavailable, "unsupported artifact uri scheme").
			WithContext("scheme", u.Scheme)
	}
	if loc.Path == "" {
		return Location{}, simerrors.New(simerrors.CodeSourceUnavailable, "artifact uri has no path").
			WithContext("uri", uri)
	}
	return loc, nil
}

// Options carries backend settings used when a URI selects that backend.
type Options struct {
	S3    S3Config
	Redis RedisConfig
}

// Open returns a store for uri. Remote stores connect eagerly so that
// misconfiguration surfaces at startup.
func Open(ctx context.Context, uri string, opts Options) (Store, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeS3:
		cfg := opts.S3
		cfg.Bucket = loc.Host
		cfg.Key = loc.Path
		st, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	case SchemeRedis:
		cfg := opts.Redis
		cfg.Address = loc.Host
		cfg.Key = loc.Path
		st, err := NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return NewFileStore(loc.Path), nil
	}
}

// ReadAll opens src and reads it fully.
func ReadAll(ctx context.Context, src Source) ([]byte, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, simerrors.Wrap(err, simerrors.CodeSourceUnavailable, "failed to read artifact").
			WithContext("source", src.Name())
	}
	return data, nil
}
