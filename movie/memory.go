package movie

import (
	"fmt"
	"iter"
	"slices"
	"sync"
)

// MemoryDatabase keeps movies in memory.
// Useful for tests and for trying out changes without writing them.
// It's safe for concurrent use.
type MemoryDatabase struct {
	movies []Movie
	mu     sync.Mutex
}

// NewMemoryDatabase returns a database with a copy of movies.
// IDs of movies are kept as they are.
func NewMemoryDatabase(movies ...Movie) *MemoryDatabase {
	return &MemoryDatabase{
		movies: slices.Clone(movies),
	}
}

// Add assigns m a new ID and stores it
func (db *MemoryDatabase) Add(m Movie) (Movie, error) {
	if err := m.Validate(); err != nil {
		return Movie{}, err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	m = withID(m, maxID(db.movies)+1)
	db.movies = append(db.movies, m)
	return m, nil
}

// GetAll returns a sequence over a snapshot of movies taken
// when the iteration starts
func (db *MemoryDatabase) GetAll() (iter.Seq[Movie], func() error) {
	seq := func(yield func(Movie) bool) {
		db.mu.Lock()
		movies := slices.Clone(db.movies)
		db.mu.Unlock()
		for _, m := range movies {
			if !yield(m) {
				return
			}
		}
	}
	return seq, func() error { return nil }
}

func (db *MemoryDatabase) find(match func(m *Movie) bool) (Movie, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for i := range db.movies {
		if match(&db.movies[i]) {
			return db.movies[i], true, nil
		}
	}
	return Movie{}, false, nil
}

// GetByID returns a movie with a given id
func (db *MemoryDatabase) GetByID(id int) (Movie, bool, error) {
	return db.find(func(m *Movie) bool {
		return m.ID == id
	})
}

// GetByName returns the first movie whose name matches name, ignoring case
func (db *MemoryDatabase) GetByName(name string) (Movie, bool, error) {
	matches := nameMatcher(name)
	return db.find(func(m *Movie) bool {
		return matches(m.Name)
	})
}

func (db *MemoryDatabase) indexOf(id int) int {
	return slices.IndexFunc(db.movies, func(m Movie) bool {
		return m.ID == id
	})
}

// Update replaces values of a movie with a given id
func (db *MemoryDatabase) Update(id int, m Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	idx := db.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("update id %d: %w", id, ErrNotFound)
	}
	db.movies[idx].copyFields(&m)
	return nil
}

// Delete removes movie with a given id
func (db *MemoryDatabase) Delete(id int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(db.movies)
	db.movies = slices.DeleteFunc(db.movies, func(m Movie) bool {
		return m.ID == id
	})
	if len(db.movies) == n {
		return fmt.Errorf("delete id %d: %w", id, ErrNotFound)
	}
	return nil
}
