package filestore

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

// OSSStorage stores objects in an Aliyun OSS bucket.
type OSSStorage struct {
	bucket *oss.Bucket
}

var _ core.FileStorage = (*OSSStorage)(nil)

func NewOSSStorage(conf *core.Config) (*OSSStorage, error) {
	sc := conf.Storage
	if sc.OSSEndpoint == "" || sc.OSSAccessKey == "" || sc.OSSAccessSecret == "" || sc.OSSBucket == "" {
		return nil, errors.New("incomplete OSS configuration")
	}
	endpoint := sc.OSSEndpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client, err := oss.New(endpoint, sc.OSSAccessKey, sc.OSSAccessSecret)
	if err != nil {
		return nil, errors.Wrap(err, "creating OSS client")
	}
	bucket, err := client.Bucket(sc.OSSBucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting OSS bucket")
	}
	return &OSSStorage{bucket: bucket}, nil
}

func (s *OSSStorage) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	return errors.Wrap(s.bucket.PutObject(key, r, oss.ContentType(contentType)), "putting object")
}

func (s *OSSStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	ok, err := s.bucket.IsObjectExist(key)
	if err != nil {
		return "", errors.Wrap(err, "checking object")
	}
	if !ok {
		return "", core.ErrObjectNotFound
	}
	url, err := s.bucket.SignURL(key, oss.HTTPGet, int64(ttl/time.Second))
	return url, errors.Wrap(err, "signing object url")
}

func (s *OSSStorage) Delete(_ context.Context, key string) error {
	return errors.Wrap(s.bucket.DeleteObject(key), "deleting object")
}
