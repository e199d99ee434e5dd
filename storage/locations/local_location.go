package locations

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
)

// LocalDirectory is a StorageLocation rooted at a directory on disk.
type LocalDirectory struct {
	Path string
}

func NewLocalDirectory(path string) *LocalDirectory {
	return &LocalDirectory{Path: strings.TrimPrefix(path, "file://")}
}

func (d *LocalDirectory) Write(fname string, reader io.Reader) (string, error) {
	fullPath := filepath.Join(d.Path, fname)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0777); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", fullPath, err)
	}

	targetFile, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("creating file %s: %w", fullPath, err)
	}
	if _, err := io.Copy(targetFile, reader); err != nil {
		targetFile.Close()
		return "", err
	}
	if err := targetFile.Close(); err != nil {
		return "", err
	}
	return fullPath, nil
}

// Read accepts a path relative to the directory or an absolute path.
func (d *LocalDirectory) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(d.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, ErrNotFound)
	}
	return data, err
}

func (d *LocalDirectory) List() iter.Seq2[FileInfo, error] {
	errStop := errors.New("walk-dir-stop")

	return func(yield func(FileInfo, error) bool) {
		err := filepath.WalkDir(d.Path, func(p string, entry os.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return errStop
				}
				return err
			}
			if entry.IsDir() {
				return nil
			}
			info, err := entry.Info()
			if err != nil {
				return err
			}
			if !yield(FileInfo{URI: p, Size: info.Size()}, nil) {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(FileInfo{}, err)
		}
	}
}

func (d *LocalDirectory) URI(fname string) (string, error) {
	fullPath := d.resolve(fname)
	if _, err := os.Stat(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", err
	}
	return fullPath, nil
}

func (d *LocalDirectory) Copy(sourceURI string, destination string) error {
	destinationPath := d.resolve(destination)
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0777); err != nil {
		return err
	}

	source, err := os.Open(strings.TrimPrefix(sourceURI, "file://"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	defer source.Close()

	target, err := os.Create(destinationPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(target, source); err != nil {
		target.Close()
		return err
	}
	return target.Close()
}

func (d *LocalDirectory) Rename(oldPath string, newPath string) error {
	target := d.resolve(newPath)
	if err := os.MkdirAll(filepath.Dir(target), 0777); err != nil {
		return err
	}
	err := os.Rename(d.resolve(oldPath), target)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

func (d *LocalDirectory) Remove(paths ...string) error {
	for _, path := range paths {
		if err := os.Remove(d.resolve(path)); err != nil {
			return fmt.Errorf("removing file %s: %w", path, err)
		}
	}
	return nil
}

// resolve joins relative paths with the directory root and leaves absolute
// paths untouched.
func (d *LocalDirectory) resolve(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(d.Path, path)
}

var _ StorageLocation = (*LocalDirectory)(nil)
