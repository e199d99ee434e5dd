// Package locations abstracts where files live, with local directory and S3
// implementations behind one interface.
package locations

import (
	"errors"
	"io"
	"iter"
)

// FileInfo describes one stored file. The URI is the full path to the file
// including any scheme while Size is the object's length in bytes.
type FileInfo struct {
	URI  string
	Size int64
}

type StorageLocation interface {
	// Write data to the given file path. The path is relative to whatever path
	// prefixes the location was initialized with. However the returned URI
	// represents the full path to this file.
	Write(path string, data io.Reader) (uri string, err error)
	Read(path string) ([]byte, error)
	List() iter.Seq2[FileInfo, error]
	URI(path string) (string, error)
	Copy(sourceURI string, destination string) error
	// Rename moves a file within the location. Object stores implement this
	// as a copy followed by a delete.
	Rename(oldPath string, newPath string) error
	Remove(paths ...string) error
}

var ErrNotFound = errors.New("path not found")
