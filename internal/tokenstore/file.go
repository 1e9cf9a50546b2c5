package tokenstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	tokenFilePerm = fs.FileMode(0o600)
	tokenDirPerm  = fs.FileMode(0o700)
)

// FileBlob stores the record as a single JSON document on disk.
type FileBlob struct {
	path string
}

// NewFileStore creates a store backed by a pretty-printed JSON file.
func NewFileStore(path string) *BlobStore {
	return NewBlobStore("file", &FileBlob{path: path}, true)
}

// Path returns the document location.
func (f *FileBlob) Path() string {
	return f.path
}

func (f *FileBlob) Read() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading token file: %w", err)
	}

	return data, nil
}

func (f *FileBlob) Write(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), tokenDirPerm); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	if err := os.WriteFile(f.path, data, tokenFilePerm); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}

	return nil
}

func (f *FileBlob) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}

	return nil
}

// dirWritable checks dir by creating and removing a scratch file.
func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".token-check-*")
	if err != nil {
		return false
	}

	name := f.Name()
	f.Close()
	os.Remove(name)

	return true
}
