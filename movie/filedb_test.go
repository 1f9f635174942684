package movie

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kjk/movielib/journal"
	"github.com/kjk/movielib/require"
)

const jawsLine = `1,"Jaws","Shark movie","PG",124,1975,1`

func newTestFileDatabase(t *testing.T, content string) *FileDatabase {
	path := filepath.Join(t.TempDir(), "movies.txt")
	if content != "" {
		err := os.WriteFile(path, []byte(content), 0644)
		require.NoError(t, err)
	}
	db := NewFileDatabase(path)
	db.Logf = t.Logf
	return db
}

func readFile(t *testing.T, path string) string {
	d, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(d)
}

func listMovies(t *testing.T, db Database) []Movie {
	movies, err := List(db)
	require.NoError(t, err)
	return movies
}

func genMovie(i int) Movie {
	return Movie{
		Name:        fmt.Sprintf("Movie %d", i),
		Description: fmt.Sprintf("description %d", i),
		Rating:      []string{"G", "PG", "PG-13", "R"}[i%4],
		RunLength:   80 + i,
		ReleaseYear: 1950 + i%70,
		IsClassic:   i%3 == 0,
	}
}

func TestFileDatabaseJaws(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")

	m, ok, err := db.GetByName("jaws")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, m.ID)
	require.Equal(t, "Jaws", m.Name)
	require.Equal(t, "Shark movie", m.Description)
	require.True(t, m.IsClassic)

	_, ok, err = db.GetByName("jaws 2")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Delete(1))
	require.Len(t, listMovies(t, db), 0)
	require.Equal(t, "", readFile(t, db.Path))
}

func TestFileDatabaseMissingFile(t *testing.T) {
	db := newTestFileDatabase(t, "")
	require.Len(t, listMovies(t, db), 0)
	_, ok, err := db.GetByID(1)
	require.NoError(t, err)
	require.False(t, ok)

	// Add creates the file and directories
	db.Path = filepath.Join(filepath.Dir(db.Path), "sub", "dir", "movies.txt")
	m, err := db.Add(genMovie(1))
	require.NoError(t, err)
	require.Equal(t, 1, m.ID)
	require.Len(t, listMovies(t, db), 1)
}

func TestFileDatabaseUniqueIDs(t *testing.T) {
	db := newTestFileDatabase(t, `5,"Five","","PG",90,1990,0`+"\n"+`2,"Two","","PG",90,1990,0`+"\n")
	seen := map[int]bool{5: true, 2: true}
	for i := 0; i < 20; i++ {
		before := maxID(listMovies(t, db))
		m := genMovie(i)
		// caller provided id is ignored
		m.ID = 2
		m, err := db.Add(m)
		require.NoError(t, err)
		require.Equal(t, before+1, m.ID)
		require.False(t, seen[m.ID], "duplicate id %d", m.ID)
		seen[m.ID] = true
	}
	movies := listMovies(t, db)
	require.Len(t, movies, 22)
	require.Equal(t, 25, movies[21].ID)
}

func TestFileDatabaseSkipMalformed(t *testing.T) {
	content := jawsLine + "\n" + `2,"Broken","","PG",90` + "\n\n"
	db := newTestFileDatabase(t, content)
	movies := listMovies(t, db)
	require.Len(t, movies, 1)
	require.Equal(t, "Jaws", movies[0].Name)

	st, err := db.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, st.Movies)
	require.Equal(t, 1, st.Malformed)
	require.Equal(t, 1, st.Classics)
	require.Equal(t, 1, st.MaxID)
	require.Equal(t, int64(len(content)), st.Size)

	// malformed lines survive rewrites
	m, err := db.Add(genMovie(1))
	require.NoError(t, err)
	require.Equal(t, 2, m.ID)
	require.Contains(t, readFile(t, db.Path), `2,"Broken","","PG",90`)
}

func TestFileDatabaseMalformedFieldIsFatal(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n"+`two,"Alien","","R",117,1979,0`+"\n")
	movies, errFn := db.GetAll()
	n := 0
	for range movies {
		n++
	}
	err := errFn()
	require.ErrorIs(t, err, ErrMalformedField)
	require.Equal(t, 1, n)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 2, fe.Line)
	require.Equal(t, "Id", fe.Field)

	_, _, err = db.GetByName("alien")
	require.ErrorIs(t, err, ErrMalformedField)

	// writes fail too and don't change the file
	before := readFile(t, db.Path)
	_, err = db.Add(genMovie(1))
	require.ErrorIs(t, err, ErrMalformedField)
	require.Equal(t, before, readFile(t, db.Path))
}

func TestFileDatabaseGetAllRestartable(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	movies, errFn := db.GetAll()
	count := func() int {
		n := 0
		for range movies {
			n++
		}
		require.NoError(t, errFn())
		return n
	}
	require.Equal(t, 1, count())
	_, err := db.Add(genMovie(2))
	require.NoError(t, err)
	// same sequence sees the current state of the file
	require.Equal(t, 2, count())

	// stopping early
	for m := range movies {
		require.Equal(t, 1, m.ID)
		break
	}
	require.NoError(t, errFn())
}

func TestFileDatabaseUpdate(t *testing.T) {
	db := newTestFileDatabase(t, "")
	for i := 1; i <= 4; i++ {
		_, err := db.Add(genMovie(i))
		require.NoError(t, err)
	}
	newValues := Movie{ID: 99, Name: "Jaws", Description: "Shark movie", Rating: "PG", RunLength: 124, ReleaseYear: 1975, IsClassic: true}
	require.NoError(t, db.Update(3, newValues))

	m, ok, err := db.GetByID(3)
	require.NoError(t, err)
	require.True(t, ok)
	newValues.ID = 3
	require.Equal(t, newValues, m)

	_, ok, err = db.GetByID(99)
	require.NoError(t, err)
	require.False(t, ok)

	// position in the file is preserved
	movies := listMovies(t, db)
	require.Len(t, movies, 4)
	require.Equal(t, 3, movies[2].ID)
	require.Equal(t, "Jaws", movies[2].Name)
	require.Equal(t, genMovie(4).Name, movies[3].Name)
}

func TestFileDatabaseUpdateMissing(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	err := db.Update(2, genMovie(2))
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, jawsLine+"\n", readFile(t, db.Path))

	err = db.Update(1, Movie{Name: "Jaws, again"})
	require.ErrorIs(t, err, ErrInvalidMovie)
	require.Equal(t, jawsLine+"\n", readFile(t, db.Path))
}

func TestFileDatabaseDeleteMissing(t *testing.T) {
	content := jawsLine + "\n" + `2,"Alien","","R",117,1979,0` + "\n"
	db := newTestFileDatabase(t, content)
	err := db.Delete(3)
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, content, readFile(t, db.Path))
	assertNoTempFiles(t, filepath.Dir(db.Path))
}

func TestFileDatabaseDelete(t *testing.T) {
	db := newTestFileDatabase(t, "")
	for i := 1; i <= 5; i++ {
		_, err := db.Add(genMovie(i))
		require.NoError(t, err)
	}
	require.NoError(t, db.Delete(2))
	require.NoError(t, db.Delete(5))
	var ids []int
	for _, m := range listMovies(t, db) {
		ids = append(ids, m.ID)
	}
	require.Equal(t, []int{1, 3, 4}, ids)

	// ids are not re-used as long as a bigger one exists
	m, err := db.Add(genMovie(6))
	require.NoError(t, err)
	require.Equal(t, 5, m.ID)
	assertNoTempFiles(t, filepath.Dir(db.Path))
}

func assertNoTempFiles(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.Contains(e.Name(), ".tmp-"), "left-over temp file %s", e.Name())
	}
}

func TestFileDatabaseDeleteCrashBeforeReplace(t *testing.T) {
	content := jawsLine + "\n" + `2,"Alien","","R",117,1979,0` + "\n"
	db := newTestFileDatabase(t, content)
	errCrash := errors.New("simulated crash")
	var tmpContent string
	db.OnBeforeReplace = func(tmpPath string) error {
		tmpContent = readFile(t, tmpPath)
		return errCrash
	}
	err := db.Delete(1)
	require.ErrorIs(t, err, errCrash)
	// temp file had the filtered content
	require.Equal(t, `2,"Alien","","R",117,1979,0`+"\n", tmpContent)
	// original is unchanged and parses to the original set
	require.Equal(t, content, readFile(t, db.Path))
	db.OnBeforeReplace = nil
	movies := listMovies(t, db)
	require.Len(t, movies, 2)
	require.Equal(t, "Jaws", movies[0].Name)
	assertNoTempFiles(t, filepath.Dir(db.Path))
}

func TestFileDatabaseCopies(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	m, ok, err := db.GetByID(1)
	require.NoError(t, err)
	require.True(t, ok)
	m.Name = "Changed"
	m2, _, err := db.GetByID(1)
	require.NoError(t, err)
	require.Equal(t, "Jaws", m2.Name)
}

func TestFileDatabaseJournal(t *testing.T) {
	db := newTestFileDatabase(t, "")
	journalPath := filepath.Join(filepath.Dir(db.Path), "journal.txt")
	w, err := journal.Open(journalPath)
	require.NoError(t, err)
	db.Journal = w

	m, err := db.Add(genMovie(1))
	require.NoError(t, err)
	require.NoError(t, db.Update(m.ID, genMovie(2)))
	require.NoError(t, db.Delete(m.ID))
	// failed operations are not recorded
	require.ErrorIs(t, db.Delete(m.ID), ErrNotFound)
	require.NoError(t, w.Close())

	var names []string
	entries, errFn := journal.Read(journalPath)
	for e := range entries {
		names = append(names, e.Name)
	}
	require.NoError(t, errFn())
	require.Equal(t, []string{"add", "update", "delete"}, names)
}

func TestFileDatabaseLock(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	db.Lock = true
	db.LockTimeout = 200 * time.Millisecond

	m, err := db.Add(genMovie(2))
	require.NoError(t, err)
	require.Equal(t, 2, m.ID)
	require.Len(t, listMovies(t, db), 2)

	// another process (simulated by another database) holds the lock
	other := NewFileDatabase(db.Path)
	other.Lock = true
	unlock, err := other.lock(true)
	require.NoError(t, err)

	_, err = db.Add(genMovie(3))
	require.ErrorIs(t, err, ErrLockTimeout)
	_, _, err = db.GetByID(1)
	require.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	_, err = db.Add(genMovie(3))
	require.NoError(t, err)
}

func TestFileDatabaseLongLine(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	long := genMovie(2)
	long.Description = strings.Repeat("x", 70*1024)
	m, err := db.Add(long)
	require.NoError(t, err)
	require.Equal(t, 2, m.ID)

	movies := listMovies(t, db)
	require.Len(t, movies, 2)
	require.Equal(t, long.Description, movies[1].Description)

	st, err := db.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Movies)

	long.Description = strings.Repeat("y", 100*1024)
	require.NoError(t, db.Update(2, long))
	got, ok, err := db.GetByID(2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, long.Description, got.Description)

	require.NoError(t, db.Delete(2))
	require.Equal(t, jawsLine+"\n", readFile(t, db.Path))
}

func TestFileDatabaseNoTrailingNewline(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\r\n"+`2,"Alien","","R",117,1979,0`)
	movies := listMovies(t, db)
	require.Len(t, movies, 2)
	require.Equal(t, "Alien", movies[1].Name)

	m, err := db.Add(genMovie(3))
	require.NoError(t, err)
	require.Equal(t, 3, m.ID)
	require.Len(t, listMovies(t, db), 3)
}

func TestFileDatabaseNestedLock(t *testing.T) {
	db := newTestFileDatabase(t, jawsLine+"\n")
	db.Lock = true
	db.LockTimeout = 200 * time.Millisecond
	other := NewFileDatabase(db.Path)
	other.Lock = true
	other.LockTimeout = 200 * time.Millisecond

	err := db.Exclusive(func() error {
		_, err := db.Add(genMovie(2))
		require.NoError(t, err)
		// nested Add released only its own hold
		_, _, err = other.GetByID(1)
		require.ErrorIs(t, err, ErrLockTimeout)
		require.Len(t, listMovies(t, db), 2)
		_, _, err = other.GetByID(1)
		require.ErrorIs(t, err, ErrLockTimeout)
		return nil
	})
	require.NoError(t, err)
	_, ok, err := other.GetByID(2)
	require.NoError(t, err)
	require.True(t, ok)

	movies, errFn := db.GetAll()
	n := 0
	for m := range movies {
		n++
		require.ErrorIs(t, db.Update(m.ID, genMovie(5)), ErrLockUpgrade)
		_, _, err = db.GetByID(m.ID)
		require.NoError(t, err)
		// still holding the shared lock
		_, err = other.Add(genMovie(3))
		require.ErrorIs(t, err, ErrLockTimeout)
	}
	require.NoError(t, errFn())
	require.Equal(t, 2, n)

	_, err = other.Add(genMovie(3))
	require.NoError(t, err)
	require.Equal(t, "Jaws", listMovies(t, db)[0].Name)
}
