package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// LocalConfig configures LocalStorage for development.
type LocalConfig struct {
	Dir     string `env:"UPLOADS_DIR" envDefault:"./uploads"`
	BaseURL string `env:"UPLOADS_BASE_URL" envDefault:"/uploads/"`
}

// LocalStorage writes objects below an absolute base directory.
type LocalStorage struct {
	baseDir string
	baseURL string
}

func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, ErrInvalidConfig
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}
	return &LocalStorage{baseDir: abs, baseURL: baseURL}, nil
}

// Dir returns the absolute base directory, for mounting a file server.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) Put(ctx context.Context, key string, body []byte, opts ...PutOption) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := CleanKey(key)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyObject
	}

	o := resolvePutOptions(body, opts)
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToCreateDirectory, err)
	}

	// Write then rename so readers never observe a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}
	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}
	if o.publicRead {
		_ = os.Chmod(tmp.Name(), 0o644)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("%w: %v", ErrFailedToWriteFile, err)
	}

	return &Object{
		Key:         key,
		URL:         s.URL(key),
		Size:        int64(len(body)),
		ContentType: o.contentType,
	}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return ErrFileNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedToDeleteFile, err)
	}
	return nil
}

func (s *LocalStorage) URL(key string) string {
	return joinURL(s.baseURL, key)
}
