// Package backup creates compressed snapshots of a movie storage file,
// restores them and copies them to remote storage.
package backup

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kjk/movielib/atomicfile"
	"github.com/kjk/movielib/log"
	"github.com/kjk/movielib/movie"
	"github.com/kjk/movielib/u"
	"github.com/pmezard/go-difflib/difflib"
)

type Format string

const (
	FormatZstd   Format = "zst"
	FormatBrotli Format = "br"
	FormatGzip   Format = "gz"
)

// ParseFormat parses a name of compression format.
// Empty string means zstd
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "zst", "zstd":
		return FormatZstd, nil
	case "br", "brotli":
		return FormatBrotli, nil
	case "gz", "gzip":
		return FormatGzip, nil
	}
	return "", fmt.Errorf("unknown backup format '%s'", s)
}

const (
	namePrefix = "movies-"
	nameInfix  = ".txt."
	timeFormat = "20060102-150405.000"
)

var timeNow = time.Now

// Snapshot describes a backup file
type Snapshot struct {
	Path    string
	Created time.Time
	// size of compressed file
	Size int64
	// sha1 of uncompressed data, only set by Create
	Sha1 string
	// number of movies, only set by Create.
	// -1 if src has a malformed field and the count is unknown
	Records int
}

// SnapshotName returns file name of a snapshot created at t
func SnapshotName(t time.Time, format Format) string {
	return namePrefix + t.UTC().Format(timeFormat) + nameInfix + string(format)
}

// ParseSnapshotName returns creation time of a snapshot with a given
// file name. Returns false if name is not a snapshot name.
func ParseSnapshotName(name string) (time.Time, bool) {
	s, ok := strings.CutPrefix(name, namePrefix)
	if !ok {
		return time.Time{}, false
	}
	s, ext, ok := strings.Cut(s, nameInfix)
	if !ok {
		return time.Time{}, false
	}
	if _, err := ParseFormat(ext); err != nil {
		return time.Time{}, false
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// countRecords returns number of valid movies in storage file data.
// Returns an error on the first malformed field.
func countRecords(d []byte) (int, error) {
	n := 0
	var errParse error
	err := movie.ReadLines(bytes.NewReader(d), func(lineNo int, line string) bool {
		if strings.TrimSpace(line) == "" {
			return true
		}
		_, ok, err := movie.ParseLine(line)
		if err != nil {
			var fe *movie.FieldError
			if errors.As(err, &fe) {
				fe.Line = lineNo
			}
			errParse = err
			return false
		}
		if ok {
			n++
		}
		return true
	})
	if err == nil {
		err = errParse
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Create writes a compressed copy of storage file src to dir.
// Storage file with malformed fields is backed up as is.
func Create(src string, dir string, format Format) (*Snapshot, error) {
	d, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	records, err := countRecords(d)
	if err != nil {
		log.Verbosef("backup: backing up '%s' with unknown number of movies: %s\n", src, err)
		records = -1
	}

	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	created := timeNow().UTC()
	dstPath := filepath.Join(dir, SnapshotName(created, format))
	f, err := atomicfile.New(dstPath)
	if err != nil {
		return nil, err
	}
	defer f.RemoveIfNotClosed()

	w, err := u.NewCompressWriter(f, "."+string(format))
	if err != nil {
		return nil, err
	}
	_, err = w.Write(d)
	err2 := w.Close()
	if err = errors.Join(err, err2); err != nil {
		return nil, err
	}
	if err = f.Close(); err != nil {
		return nil, err
	}
	return &Snapshot{
		Path:    dstPath,
		Created: created,
		Size:    u.FileSize(dstPath),
		Sha1:    u.DataSha1Hex(d),
		Records: records,
	}, nil
}

// List returns snapshots in dir, newest first.
// Missing dir has no snapshots.
func List(dir string) ([]*Snapshot, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res []*Snapshot
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		created, ok := ParseSnapshotName(e.Name())
		if !ok {
			continue
		}
		s := &Snapshot{
			Path:    filepath.Join(dir, e.Name()),
			Created: created,
		}
		if fi, err := e.Info(); err == nil {
			s.Size = fi.Size()
		}
		res = append(res, s)
	}
	slices.SortFunc(res, func(a, b *Snapshot) int {
		return b.Created.Compare(a.Created)
	})
	return res, nil
}

// Latest returns the newest snapshot in dir
func Latest(dir string) (*Snapshot, error) {
	snapshots, err := List(dir)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no backups in '%s'", dir)
	}
	return snapshots[0], nil
}

// Restore replaces storage file dst with content of a snapshot.
// Every line of a snapshot must parse, otherwise dst is not changed.
// Returns number of restored movies.
func Restore(snapshotPath string, dst string) (int, error) {
	d, err := u.ReadFileMaybeCompressed(snapshotPath)
	if err != nil {
		return 0, err
	}
	n, err := countRecords(d)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", snapshotPath, err)
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return 0, err
	}
	if err = atomicfile.WriteFile(dst, d); err != nil {
		return 0, err
	}
	return n, nil
}

func readMaybeMissing(path string) (string, error) {
	d, err := u.ReadFileMaybeCompressed(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return string(d), err
}

// Diff returns a unified diff between content of a snapshot and
// current storage file. Empty string means no changes.
func Diff(snapshotPath string, current string) (string, error) {
	a, err := u.ReadFileMaybeCompressed(snapshotPath)
	if err != nil {
		return "", err
	}
	b, err := readMaybeMissing(current)
	if err != nil {
		return "", err
	}
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(b),
		FromFile: filepath.Base(snapshotPath),
		ToFile:   filepath.Base(current),
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}
