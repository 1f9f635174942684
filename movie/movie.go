package movie

import (
	"fmt"
	"strings"
)

// Movie is a single entry in the catalog.
// ID is assigned by the database, 0 means the movie wasn't stored yet.
type Movie struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Rating      string `json:"rating,omitempty" yaml:"rating,omitempty"`
	RunLength   int    `json:"run_length" yaml:"run_length"`
	ReleaseYear int    `json:"release_year" yaml:"release_year"`
	IsClassic   bool   `json:"is_classic" yaml:"is_classic"`
}

// MinReleaseYear is the earliest accepted release year. 0 means unknown.
const MinReleaseYear = 1900

// forbidden in string fields because the storage format doesn't escape them
const forbiddenChars = ",\"\r\n"

// ValidationError describes why a movie can't be stored
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid movie: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMovie
}

func checkText(field, s string) error {
	if i := strings.IndexAny(s, forbiddenChars); i >= 0 {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("can't contain %q", s[i]),
		}
	}
	return nil
}

// Validate returns a *ValidationError if m can't be written to storage
func (m *Movie) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "Name", Reason: "is required"}
	}
	if err := checkText("Name", m.Name); err != nil {
		return err
	}
	if err := checkText("Description", m.Description); err != nil {
		return err
	}
	if err := checkText("Rating", m.Rating); err != nil {
		return err
	}
	if m.RunLength < 0 {
		return &ValidationError{Field: "RunLength", Reason: "must be >= 0"}
	}
	if m.ReleaseYear != 0 && m.ReleaseYear < MinReleaseYear {
		return &ValidationError{Field: "ReleaseYear", Reason: fmt.Sprintf("must be >= %d", MinReleaseYear)}
	}
	return nil
}

// copyFields copies everything but ID from src
func (m *Movie) copyFields(src *Movie) {
	m.Name = src.Name
	m.Description = src.Description
	m.Rating = src.Rating
	m.RunLength = src.RunLength
	m.ReleaseYear = src.ReleaseYear
	m.IsClassic = src.IsClassic
}

// withID returns a copy of src with the given id
func withID(src Movie, id int) Movie {
	res := Movie{ID: id}
	res.copyFields(&src)
	return res
}
