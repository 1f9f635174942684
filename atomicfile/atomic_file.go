package atomicfile

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/

var (
	// ErrCancelled is returned by calls subsequent to RemoveIfNotClosed()
	ErrCancelled = errors.New("cancelled")

	_ io.WriteCloser = &File{}
	_ io.StringWriter = &File{}
)

// File writes to a temporary file in the destination directory and
// replaces destination with it on Close.
// If anything fails, the temporary file is deleted and destination
// is left as it was.
type File struct {
	// OnBeforeRename, if set, is called by Close after the temporary file
	// was fully written and synced, right before it replaces the destination.
	// Returning an error aborts the replace.
	OnBeforeRename func(tmpPath string) error

	dstPath string
	dir     string
	tmpPath string
	tmpFile *os.File
	// first error we encountered, sticky
	err error
}

// New creates a temporary file next to path.
// Fails early if the directory doesn't exist.
func New(path string) (*File, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	// pattern ensures temp files are recognizable: ".movies.txt.tmp-123456"
	tmpFile, err := os.CreateTemp(dir, "."+fName+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &File{
		dstPath: path,
		dir:     dir,
		tmpPath: tmpFile.Name(),
		tmpFile: tmpFile,
	}, nil
}

// TmpPath returns the path of the temporary file
func (f *File) TmpPath() string {
	return f.tmpPath
}

// Path returns the destination path
func (f *File) Path() string {
	return f.dstPath
}

func (f *File) setErr(err error) error {
	if err == nil {
		return nil
	}
	if f.err == nil {
		f.err = err
	}
	// deletes the temporary file
	_ = f.Close()
	return err
}

// Write writes data to the temporary file
func (f *File) Write(d []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.alreadyClosed() {
		return 0, os.ErrClosed
	}
	n, err := f.tmpFile.Write(d)
	return n, f.setErr(err)
}

// WriteString writes s to the temporary file
func (f *File) WriteString(s string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	if f.alreadyClosed() {
		return 0, os.ErrClosed
	}
	n, err := f.tmpFile.WriteString(s)
	return n, f.setErr(err)
}

func (f *File) alreadyClosed() bool {
	return f.tmpFile == nil
}

// RemoveIfNotClosed abandons the write: the temp file is deleted
// and destination is not touched.
// Use it with defer to clean up on early returns and panics.
// A no-op after Close.
func (f *File) RemoveIfNotClosed() {
	if f == nil || f.alreadyClosed() {
		return
	}
	f.err = ErrCancelled
	_ = f.Close()
}

// Close syncs the temporary file and renames it over destination.
// Can be called multiple times, returns the first error.
func (f *File) Close() error {
	if f.alreadyClosed() {
		return f.err
	}
	tmpFile := f.tmpFile
	f.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(f.tmpPath)
		}
	}()

	if f.err != nil {
		return f.err
	}
	err := errors.Join(errSync, errClose)
	if err == nil && f.OnBeforeRename != nil {
		err = f.OnBeforeRename(f.tmpPath)
	}
	if err == nil {
		err = os.Rename(f.tmpPath, f.dstPath)
		didRename = err == nil
	}
	if didRename {
		syncDir(f.dir)
	}
	f.err = err
	return err
}

// after rename, for extra protection against crashes
func syncDir(dir string) {
	fdir, _ := os.Open(dir)
	if fdir != nil {
		// nice to have, not must have
		_ = fdir.Sync()
		_ = fdir.Close()
	}
}

// WriteFile writes d to path atomically
func WriteFile(path string, d []byte) error {
	f, err := New(path)
	if err != nil {
		return err
	}
	defer f.RemoveIfNotClosed()
	if _, err = f.Write(d); err != nil {
		return err
	}
	return f.Close()
}
