// Package export renders movies as json, yaml or toon.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/kjk/movielib/movie"
	"github.com/mattn/go-isatty"
	"github.com/tidwall/pretty"
	"github.com/toon-format/toon-go"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOON Format = "toon"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toon":
		return FormatTOON, nil
	}
	return "", fmt.Errorf("unknown export format '%s'", s)
}

// IsTerminal returns true if w is a terminal, in which case it's
// nice to colorize the output
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// toMap converts a movie to a map with keys matching json tags.
// toon encodes maps with stable key order
func toMap(m *movie.Movie) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"name":         m.Name,
		"description":  m.Description,
		"rating":       m.Rating,
		"run_length":   m.RunLength,
		"release_year": m.ReleaseYear,
		"is_classic":   m.IsClassic,
	}
}

func marshalJSON(movies []movie.Movie, color bool) ([]byte, error) {
	if movies == nil {
		movies = []movie.Movie{}
	}
	d, err := json.Marshal(movies)
	if err != nil {
		return nil, err
	}
	d = pretty.Pretty(d)
	if color {
		d = pretty.Color(d, pretty.TerminalStyle)
	}
	return d, nil
}

func marshalTOON(movies []movie.Movie) ([]byte, error) {
	list := make([]map[string]any, len(movies))
	for i := range movies {
		list[i] = toMap(&movies[i])
	}
	d, err := toon.Marshal(map[string]any{"movies": list})
	if err != nil {
		return nil, err
	}
	if len(d) > 0 && d[len(d)-1] != '\n' {
		d = append(d, '\n')
	}
	return d, nil
}

// Marshal encodes movies in a given format.
// color only applies to json.
func Marshal(movies []movie.Movie, format Format, color bool) ([]byte, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(movies, color)
	case FormatYAML:
		if movies == nil {
			movies = []movie.Movie{}
		}
		return yaml.Marshal(movies)
	case FormatTOON:
		return marshalTOON(movies)
	}
	return nil, fmt.Errorf("unknown export format '%s'", format)
}

// Write writes movies to w in a given format, colorizing json
// if w is a terminal
func Write(w io.Writer, movies []movie.Movie, format Format) error {
	d, err := Marshal(movies, format, IsTerminal(w))
	if err != nil {
		return err
	}
	_, err = w.Write(d)
	return err
}
