package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// localStorage keeps objects as files below a root directory. Keys use forward
// slashes on every platform.
type localStorage struct {
	fs afero.Fs
}

// NewLocal returns a Storage writing below root on the host filesystem. The
// directory is created when missing.
func NewLocal(root string) (Storage, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return NewFromFs(afero.NewBasePathFs(osFs, root)), nil
}

// NewFromFs wraps an arbitrary afero filesystem, typically a MemMapFs in tests.
func NewFromFs(fsys afero.Fs) Storage {
	return &localStorage{fs: fsys}
}

func (l *localStorage) Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}
	name := path.Clean("/" + key)
	if err := l.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("create object dir: %w", err)
	}

	tmp := name + "." + uuid.NewString() + ".tmp"
	f, err := l.fs.Create(tmp)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create object: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("write object: %w", err)
	}
	if err := l.fs.Rename(tmp, name); err != nil {
		_ = l.fs.Remove(tmp)
		return ObjectInfo{}, fmt.Errorf("commit object: %w", err)
	}

	ct := opt.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(path.Ext(name))
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  ct,
		LastModified: time.Now(),
		Metadata:     opt.Metadata,
	}, nil
}

func (l *localStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	name := path.Clean("/" + key)
	f, err := l.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, ObjectInfo{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	if st.IsDir() {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(path.Ext(name)),
		LastModified: st.ModTime(),
	}, nil
}

func (l *localStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.fs.Remove(path.Clean("/" + key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *localStorage) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrNotSupported
}
