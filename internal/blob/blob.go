// Package blob stores uploaded document bytes by key.
package blob

import (
	"context"
	"strings"

	"github.com/juju/errors"
)

// ErrSkipped is returned by Put when the backend keeps no bytes at all.
const ErrSkipped = errors.ConstError("binary storage skipped")

// Store keeps opaque byte blobs. Keys are slash separated relative paths.
// Get and Delete report a missing key with an error satisfying
// errors.Is(err, errors.NotFound).
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return errors.NotValidf("blob key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return errors.NotValidf("blob key %q", key)
		}
	}
	return nil
}
