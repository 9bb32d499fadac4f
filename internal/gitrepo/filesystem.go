package gitrepo

import (
	"io/fs"
	"os"
)

// FileSystem abstracts the filesystem operations the repository manager performs.
type FileSystem interface {
	// PathExists reports whether the supplied path is present.
	PathExists(path string) bool
	// MakeDirectoryAll creates the directory hierarchy for the supplied path.
	MakeDirectoryAll(path string, permissions fs.FileMode) error
}

// OSFileSystem implements FileSystem against the operating system.
type OSFileSystem struct{}

// NewOSFileSystem constructs an operating system backed FileSystem.
func NewOSFileSystem() OSFileSystem {
	return OSFileSystem{}
}

// PathExists reports whether the supplied path is present.
func (fileSystem OSFileSystem) PathExists(path string) bool {
	_, statError := os.Stat(path)
	return statError == nil
}

// MakeDirectoryAll creates the directory hierarchy for the supplied path.
func (fileSystem OSFileSystem) MakeDirectoryAll(path string, permissions fs.FileMode) error {
	return os.MkdirAll(path, permissions)
}
