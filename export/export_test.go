package export

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/kjk/movielib/movie"
	"github.com/kjk/movielib/require"
)

var testMovies = []movie.Movie{
	{ID: 1, Name: "Jaws", Description: "Shark movie", Rating: "PG", RunLength: 124, ReleaseYear: 1975, IsClassic: true},
	{ID: 2, Name: "Alien", Rating: "R", RunLength: 117, ReleaseYear: 1979},
}

func TestParseFormat(t *testing.T) {
	for s, exp := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "toon": FormatTOON} {
		got, err := ParseFormat(s)
		require.NoError(t, err)
		require.Equal(t, exp, got)
	}
	_, err := ParseFormat("xml")
	require.Error(t, err)
	_, err = Marshal(testMovies, Format("xml"), false)
	require.Error(t, err)
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testMovies, FormatJSON))
	// not a terminal so no color
	require.False(t, strings.Contains(buf.String(), "\x1b["))
	require.True(t, strings.Contains(buf.String(), "\n  "))

	var got []movie.Movie
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, testMovies, got)

	d, err := Marshal(testMovies, FormatJSON, true)
	require.NoError(t, err)
	require.Contains(t, string(d), "\x1b[")

	d, err = Marshal(nil, FormatJSON, false)
	require.NoError(t, err)
	require.Equal(t, "[]", strings.TrimSpace(string(d)))
}

func TestYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testMovies, FormatYAML))
	require.Contains(t, buf.String(), "name: Jaws")
	require.Contains(t, buf.String(), "release_year: 1979")

	var got []movie.Movie
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Equal(t, testMovies, got)
}

func TestTOON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testMovies, FormatTOON))
	s := buf.String()
	require.Contains(t, s, "movies[2]")
	require.Contains(t, s, "Jaws")
	require.Contains(t, s, "Shark movie")
	require.True(t, strings.HasSuffix(s, "\n"))
}

func TestIsTerminal(t *testing.T) {
	require.False(t, IsTerminal(&bytes.Buffer{}))
}
