// Package filestore implements core.FileStorage on the local disk and on Aliyun OSS.
package filestore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrInvalidKey       = errors.New("invalid object key")
	ErrInvalidSignature = errors.New("invalid or expired signature")
)

// LocalStorage stores objects under a directory. Signed URLs point to BaseURL and are verified with Verify.
type LocalStorage struct {
	dir     string
	baseURL string
	secret  []byte
}

var _ core.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(conf *core.Config) (*LocalStorage, error) {
	dir := conf.Storage.LocalDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(conf.WorkDir, dir)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage dir")
	}
	return &LocalStorage{
		dir:     dir,
		baseURL: strings.TrimSuffix(conf.Storage.LocalBaseURL, "/"),
		secret:  []byte(conf.SecretKey),
	}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.ToSlash(filepath.Clean("/" + key))[1:]
	if key == "" || clean != key {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.dir, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return errors.Wrap(err, "creating object dir")
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return errors.Wrap(err, "creating object")
	}
	if _, err = io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(fp)
		return errors.Wrap(err, "writing object")
	}
	return errors.Wrap(f.Close(), "closing object")
}

func (s *LocalStorage) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *LocalStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	fp, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err = os.Stat(fp); err != nil {
		if os.IsNotExist(err) {
			return "", core.ErrObjectNotFound
		}
		return "", errors.Wrap(err, "checking object")
	}

	expires := NowFunc().Add(ttl).Unix()
	q := make(url.Values)
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, expires))
	return s.baseURL + "/" + key + "?" + q.Encode(), nil
}

// Verify checks a signed URL's query and returns the object path to serve.
func (s *LocalStorage) Verify(key, expires, signature string) (string, error) {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || NowFunc().Unix() > exp {
		return "", ErrInvalidSignature
	}
	if !hmac.Equal([]byte(signature), []byte(s.sign(key, exp))) {
		return "", ErrInvalidSignature
	}
	return s.path(key)
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}
