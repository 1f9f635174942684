package movie

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/kjk/movielib/atomicfile"
	"github.com/kjk/movielib/journal"
)

// FileDatabase stores movies in a text file, one movie per line.
// Configure the fields before first use.
type FileDatabase struct {
	// Path of the storage file. It doesn't have to exist, it's created
	// by the first Add.
	Path string

	// if true, every operation holds an advisory lock on Path + ".lock"
	// for its duration
	Lock bool
	// how long to wait for the lock, DefaultLockTimeout if 0
	LockTimeout time.Duration

	// if set, every change is recorded in the journal
	Journal *journal.Writer

	// if set, used to log skipped lines and other diagnostics
	Logf func(format string, args ...any)

	// OnBeforeReplace, if set, is called after a new version of storage
	// file was written to tmpPath and right before it replaces Path.
	// Returning an error leaves Path untouched.
	OnBeforeReplace func(tmpPath string) error

	fileLock *flock.Flock
	// protects the fields below
	mu             sync.Mutex
	holds          int
	holdsExclusive bool
}

// NewFileDatabase returns a database stored in a file at path
func NewFileDatabase(path string) *FileDatabase {
	return &FileDatabase{
		Path: path,
	}
}

func (db *FileDatabase) logf(format string, args ...any) {
	if db.Logf != nil {
		db.Logf(format, args...)
	}
}

// scanLines calls fn for every non-empty line in storage file.
// m is nil if the line doesn't parse into a movie.
// A missing storage file has no lines.
func (db *FileDatabase) scanLines(fn func(line string, m *Movie) bool) error {
	f, err := os.Open(db.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	var errParse error
	err = ReadLines(f, func(lineNo int, line string) bool {
		if strings.TrimSpace(line) == "" {
			return true
		}
		m, ok, err := ParseLine(line)
		if err != nil {
			var fe *FieldError
			if errors.As(err, &fe) {
				fe.Line = lineNo
			}
			errParse = fmt.Errorf("%s: %w", db.Path, err)
			return false
		}
		var mp *Movie
		if ok {
			mp = &m
		} else {
			db.logf("movie: skipping malformed line %d in '%s'\n", lineNo, db.Path)
		}
		return fn(line, mp)
	})
	if err != nil {
		return fmt.Errorf("error reading '%s': %w", db.Path, err)
	}
	if errParse != nil {
		return errParse
	}
	return nil
}

// each calls fn for every valid movie until fn returns false
func (db *FileDatabase) each(fn func(m *Movie) bool) error {
	return db.scanLines(func(_ string, m *Movie) bool {
		if m == nil {
			return true
		}
		return fn(m)
	})
}

func (db *FileDatabase) readAll() ([]Movie, error) {
	var res []Movie
	err := db.each(func(m *Movie) bool {
		res = append(res, *m)
		return true
	})
	return res, err
}

// GetAll returns a sequence of movies in storage file.
// The file is read when the sequence is iterated, every iteration
// reads it again. With Lock set, changing db from inside the loop
// fails with ErrLockUpgrade.
func (db *FileDatabase) GetAll() (iter.Seq[Movie], func() error) {
	var iterErr error
	seq := func(yield func(Movie) bool) {
		iterErr = nil
		unlock, err := db.lock(false)
		if err != nil {
			iterErr = err
			return
		}
		defer unlock()
		iterErr = db.each(func(m *Movie) bool {
			return yield(*m)
		})
	}
	return seq, func() error { return iterErr }
}

func (db *FileDatabase) find(match func(m *Movie) bool) (Movie, bool, error) {
	unlock, err := db.lock(false)
	if err != nil {
		return Movie{}, false, err
	}
	defer unlock()

	var res Movie
	found := false
	err = db.each(func(m *Movie) bool {
		if match(m) {
			res = *m
			found = true
			return false
		}
		return true
	})
	if err != nil {
		return Movie{}, false, err
	}
	return res, found, nil
}

// GetByID returns a movie with a given id
func (db *FileDatabase) GetByID(id int) (Movie, bool, error) {
	return db.find(func(m *Movie) bool {
		return m.ID == id
	})
}

// GetByName returns the first movie whose name matches name, ignoring case
func (db *FileDatabase) GetByName(name string) (Movie, bool, error) {
	matches := nameMatcher(name)
	return db.find(func(m *Movie) bool {
		return matches(m.Name)
	})
}

// rewrite streams storage file through filter into a temporary file
// and replaces storage file with it.
// filter returns the line to write and false to drop the line. m is nil
// for lines that don't parse, those are preserved as they are unless
// filter drops them.
// finish is called after all lines were written. If it returns an error,
// the storage file is not changed.
func (db *FileDatabase) rewrite(filter func(line string, m *Movie) (string, bool), finish func(w *bufio.Writer) error) error {
	dir := filepath.Dir(db.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := atomicfile.New(db.Path)
	if err != nil {
		return err
	}
	// no-op after successful Close
	defer f.RemoveIfNotClosed()
	f.OnBeforeRename = db.OnBeforeReplace

	w := bufio.NewWriter(f)
	var errWrite error
	err = db.scanLines(func(line string, m *Movie) bool {
		out, keep := filter(line, m)
		if !keep {
			return true
		}
		if _, errWrite = w.WriteString(out); errWrite != nil {
			return false
		}
		errWrite = w.WriteByte('\n')
		return errWrite == nil
	})
	if err = errors.Join(err, errWrite); err != nil {
		return err
	}
	if finish != nil {
		if err = finish(w); err != nil {
			return err
		}
	}
	if err = w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func keepLine(line string, _ *Movie) (string, bool) {
	return line, true
}

// Add assigns m a new ID, one bigger than the biggest ID in storage,
// and appends it.
func (db *FileDatabase) Add(m Movie) (Movie, error) {
	if err := m.Validate(); err != nil {
		return Movie{}, err
	}
	unlock, err := db.lock(true)
	if err != nil {
		return Movie{}, err
	}
	defer unlock()

	movies, err := db.readAll()
	if err != nil {
		return Movie{}, err
	}
	m = withID(m, maxID(movies)+1)
	err = db.rewrite(keepLine, func(w *bufio.Writer) error {
		_, err := w.Write(AppendLine(nil, &m))
		return err
	})
	if err != nil {
		return Movie{}, err
	}
	db.record("add", &m)
	return m, nil
}

// Update replaces values of a movie with a given id with values from m.
// ID of the movie doesn't change and its position in the file is kept.
func (db *FileDatabase) Update(id int, m Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	unlock, err := db.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	updated := withID(m, id)
	found := false
	filter := func(line string, rec *Movie) (string, bool) {
		if rec == nil || rec.ID != id || found {
			return line, true
		}
		found = true
		return MarshalLine(&updated), true
	}
	err = db.rewrite(filter, func(_ *bufio.Writer) error {
		if !found {
			return fmt.Errorf("update id %d: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.record("update", &updated)
	return nil
}

// Delete removes movie with a given id. The storage file is copied
// line by line, except the deleted movie, to a temporary file which
// then replaces the original. The original is unchanged until then.
func (db *FileDatabase) Delete(id int) error {
	unlock, err := db.lock(true)
	if err != nil {
		return err
	}
	defer unlock()

	var deleted *Movie
	filter := func(line string, rec *Movie) (string, bool) {
		if rec != nil && rec.ID == id {
			if deleted == nil {
				cp := *rec
				deleted = &cp
			}
			return "", false
		}
		return line, true
	}
	err = db.rewrite(filter, func(_ *bufio.Writer) error {
		if deleted == nil {
			return fmt.Errorf("delete id %d: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.record("delete", deleted)
	return nil
}

// record writes a change to the journal. The change already happened so
// failure to record it is only logged.
func (db *FileDatabase) record(op string, m *Movie) {
	if db.Journal == nil {
		return
	}
	_, err := db.Journal.Append(op, journalValues(m)...)
	if err != nil {
		db.logf("movie: failed to record '%s' of id %d in journal: %s\n", op, m.ID, err)
	}
}

func journalValues(m *Movie) []any {
	return []any{
		"id", m.ID,
		"name", m.Name,
		"description", m.Description,
		"rating", m.Rating,
		"run_length", m.RunLength,
		"release_year", m.ReleaseYear,
		"is_classic", m.IsClassic,
	}
}

// Stats describes the content of storage file
type Stats struct {
	Movies    int
	Classics  int
	MaxID     int
	Malformed int
	// size of storage file in bytes, 0 if it doesn't exist
	Size int64
}

// Stats scans storage file and returns summary of its content
func (db *FileDatabase) Stats() (*Stats, error) {
	unlock, err := db.lock(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Stats{}
	err = db.scanLines(func(_ string, m *Movie) bool {
		if m == nil {
			res.Malformed++
			return true
		}
		res.Movies++
		if m.IsClassic {
			res.Classics++
		}
		res.MaxID = max(res.MaxID, m.ID)
		return true
	})
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(db.Path); err == nil {
		res.Size = st.Size()
	}
	return res, nil
}
