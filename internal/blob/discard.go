package blob

import (
	"context"

	"github.com/juju/errors"
)

// Discard is the backend for hosts without a writable filesystem. It keeps
// nothing: Put reports ErrSkipped and Get never finds a blob.
type Discard struct{}

func (Discard) Put(ctx context.Context, key string, _ []byte, _ string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return ErrSkipped
}

func (Discard) Get(_ context.Context, key string) ([]byte, error) {
	return nil, errors.NotFoundf("blob %q", key)
}

func (Discard) Delete(_ context.Context, key string) error {
	return errors.NotFoundf("blob %q", key)
}
