package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
)

var keyRE = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileBackend writes one <key>.json file per key under Dir.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend returns a backend rooted at dir on fs. A nil fs means the OS filesystem.
func NewFileBackend(fs afero.Fs, dir string) *FileBackend {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileBackend{fs: fs, dir: filepath.Clean(dir)}
}

func (b *FileBackend) path(key string) (string, error) {
	// Keys become file names; reject anything that could leave dir.
	if !keyRE.MatchString(key) || key == "." || key == ".." {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := b.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Put replaces the file through a temp file and rename in the same directory.
func (b *FileBackend) Put(_ context.Context, key string, value []byte) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}
	return b.writeAtomic(path, value)
}

func (b *FileBackend) writeAtomic(dst string, data []byte) error {
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(b.fs, b.dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = b.fs.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return b.fs.Rename(tmpName, dst)
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	path, err := b.path(key)
	if err != nil {
		return err
	}
	if err := b.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// HealthCheck checks that the directory can be created and written.
func (b *FileBackend) HealthCheck(context.Context) error {
	if err := b.fs.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	path := filepath.Join(b.dir, "."+healthKey)
	if err := afero.WriteFile(b.fs, path, []byte("1"), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return b.fs.Remove(path)
}
