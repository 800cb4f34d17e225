package storagesvc

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
)

var ErrNotFound = core.NewNotFoundError("file not found")

// New returns the FileStorage selected by the configuration.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Driver {
	case "s3":
		return NewS3Storage(ctx, conf.Storage.S3Bucket, conf.Storage.S3Region, conf.Storage.S3Endpoint)
	case "", "local":
		return NewLocalStorage(conf.Storage.LocalDir)
	default:
		return nil, errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}

// newKey returns a unique key in `folder`, keeping the upload extension.
func newKey(folder string, upload core.Upload) string {
	ext := strings.ToLower(filepath.Ext(path.Base(filepath.ToSlash(upload.Filename))))
	return path.Join(folder, uuid.New().String()+ext)
}

// cleanKey rejects keys escaping the storage root.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + filepath.ToSlash(key))[1:]
	if k == "" || k != filepath.ToSlash(key) {
		return "", ErrNotFound
	}
	return k, nil
}
