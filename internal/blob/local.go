package blob

import (
	"context"
	"os"
	"path/filepath"

	"github.com/juju/errors"
)

// Local keeps blobs as files below a root directory, one subdirectory per
// key prefix.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Annotatef(err, "create upload dir %s", root)
	}
	return &Local{root: root}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) path(key string) (string, error) {
	if err := checkKey(key); err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(key)), nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, _ string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Trace(err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		os.Remove(tmp)
		return errors.Trace(err)
	}
	return errors.Trace(os.Rename(tmp, p))
}

func (l *Local) Get(ctx context.Context, key string) ([]byte, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("blob %q", key)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return data, nil
}

// Delete removes the file and, when it was the last one, its directory.
func (l *Local) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err = os.Remove(p)
	if os.IsNotExist(err) {
		return errors.NotFoundf("blob %q", key)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if dir := filepath.Dir(p); dir != filepath.Clean(l.root) {
		os.Remove(dir) // fails while other files remain
	}
	return nil
}
