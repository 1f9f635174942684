// Package movie is a catalog of movies stored in a flat text file.
//
// Each movie is stored as a single line:
//
//	1,"Jaws","Shark movie","PG",124,1975,1
//
// Lines that don't have 7 fields are skipped when reading.
// A numeric field that is not a number is an error.
//
// FileDatabase doesn't keep movies in memory: every call reads the file
// and every change re-writes it atomically (via temporary file and rename).
// It's meant for a single writer. Set FileDatabase.Lock to serialize
// access from multiple processes.
package movie

import (
	"iter"

	"golang.org/x/text/cases"
)

// Database is implemented by FileDatabase and MemoryDatabase.
// Returned movies are copies: changing them doesn't change the database.
type Database interface {
	// Add stores m with a newly assigned ID (max existing ID + 1)
	// and returns it with ID set. m.ID is ignored.
	Add(m Movie) (Movie, error)
	// GetAll returns a sequence of all movies, in storage order.
	// Call the returned error function after iteration to check for errors.
	GetAll() (iter.Seq[Movie], func() error)
	// GetByID returns false if there's no movie with id
	GetByID(id int) (Movie, bool, error)
	// GetByName returns first movie whose name matches, ignoring case
	GetByName(name string) (Movie, bool, error)
	// Update replaces all values of movie id except the ID.
	// Returns ErrNotFound if there's no movie with id.
	Update(id int, m Movie) error
	// Delete returns ErrNotFound if there's no movie with id
	Delete(id int) error
}

var (
	_ Database = &FileDatabase{}
	_ Database = &MemoryDatabase{}
)

// List returns all movies from db as a slice
func List(db Database) ([]Movie, error) {
	var res []Movie
	movies, errFn := db.GetAll()
	for m := range movies {
		res = append(res, m)
	}
	if err := errFn(); err != nil {
		return nil, err
	}
	return res, nil
}

// nameMatcher returns a function that compares names ignoring case
// using full unicode case folding
func nameMatcher(name string) func(string) bool {
	fold := cases.Fold()
	want := fold.String(name)
	return func(s string) bool {
		return fold.String(s) == want
	}
}

func maxID(movies []Movie) int {
	res := 0
	for _, m := range movies {
		res = max(res, m.ID)
	}
	return res
}
