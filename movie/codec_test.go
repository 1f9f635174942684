package movie

import (
	"strings"
	"testing"

	"github.com/kjk/movielib/require"
)

func TestParseLine(t *testing.T) {
	m, ok, err := ParseLine(`1,"Jaws","Shark movie","PG",124,1975,1`)
	require.NoError(t, err)
	require.True(t, ok)
	exp := Movie{
		ID:          1,
		Name:        "Jaws",
		Description: "Shark movie",
		Rating:      "PG",
		RunLength:   124,
		ReleaseYear: 1975,
		IsClassic:   true,
	}
	require.Equal(t, exp, m)

	// windows line ending and spaces around numbers
	m, ok, err = ParseLine("2,\"Alien\",\"\",\"R\", 117 , 1979 ,0\r")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 117, m.RunLength)
	require.Equal(t, 1979, m.ReleaseYear)
	require.False(t, m.IsClassic)
	require.Equal(t, "", m.Description)

	// any non-zero is classic
	m, ok, err = ParseLine(`3,"Up","","PG",96,2009,2`)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, m.IsClassic)
}

func TestParseLineWrongFieldCount(t *testing.T) {
	lines := []string{
		"",
		`1,"Jaws","Shark movie","PG",124`,
		`1,"Jaws","Shark, the movie","PG",124,1975,1`,
		`1,"Jaws","Shark movie","PG",124,1975,1,extra`,
	}
	for _, line := range lines {
		_, ok, err := ParseLine(line)
		require.NoError(t, err, line)
		require.False(t, ok, line)
	}
}

func TestParseLineMalformedField(t *testing.T) {
	tests := []struct {
		line  string
		field string
	}{
		{`x,"Jaws","","PG",124,1975,1`, "Id"},
		{`1,"Jaws","","PG",long,1975,1`, "RunLength"},
		{`1,"Jaws","","PG",124,,1`, "ReleaseYear"},
		{`1,"Jaws","","PG",124,1975,yes`, "IsClassic"},
	}
	for _, test := range tests {
		_, ok, err := ParseLine(test.line)
		require.False(t, ok)
		require.ErrorIs(t, err, ErrMalformedField)
		fe, isFieldErr := err.(*FieldError)
		require.True(t, isFieldErr, test.line)
		require.Equal(t, test.field, fe.Field)
	}
}

func TestMarshalLine(t *testing.T) {
	m := Movie{ID: 12, Name: "Jaws", Description: "Shark movie", Rating: "PG", RunLength: 124, ReleaseYear: 1975, IsClassic: true}
	require.Equal(t, `12,"Jaws","Shark movie","PG",124,1975,1`, MarshalLine(&m))
	m.IsClassic = false
	m.Description = ""
	require.Equal(t, "12,\"Jaws\",\"\",\"PG\",124,1975,0\n", string(AppendLine(nil, &m)))
}

func TestRoundtrip(t *testing.T) {
	movies := []Movie{
		{ID: 1, Name: "Jaws", Description: "Shark movie", Rating: "PG", RunLength: 124, ReleaseYear: 1975, IsClassic: true},
		{ID: 2, Name: "Amélie", Rating: "R", RunLength: 122, ReleaseYear: 2001},
		{ID: 1000, Name: "x"},
		{ID: 7, Name: "Spaces  inside ", Description: "  padded", Rating: "NC-17", RunLength: 0, ReleaseYear: 0},
	}
	var buf []byte
	for _, m := range movies {
		buf = AppendLine(buf[:0], &m)
		got, ok, err := ParseLine(string(buf[:len(buf)-1]))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, m, got)
	}
}

func TestValidate(t *testing.T) {
	valid := Movie{Name: "Jaws", Rating: "PG", RunLength: 124, ReleaseYear: 1975}
	require.NoError(t, valid.Validate())

	invalid := []Movie{
		{},
		{Name: "   "},
		{Name: "Jaws, the movie"},
		{Name: `"Jaws"`},
		{Name: "Jaws", Description: "line\nbreak"},
		{Name: "Jaws", Rating: "P,G"},
		{Name: "Jaws", RunLength: -1},
		{Name: "Jaws", ReleaseYear: 1850},
	}
	for _, m := range invalid {
		err := m.Validate()
		require.ErrorIs(t, err, ErrInvalidMovie)
	}
}

func TestReadLines(t *testing.T) {
	long := strings.Repeat("a", 200*1024)
	input := "first\r\n\n" + long + "\nlast"
	var lines []string
	var lineNos []int
	err := ReadLines(strings.NewReader(input), func(lineNo int, line string) bool {
		lines = append(lines, line)
		lineNos = append(lineNos, lineNo)
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"first\r", "", long, "last"}, lines)
	require.Equal(t, []int{1, 2, 3, 4}, lineNos)

	// stopping early
	n := 0
	err = ReadLines(strings.NewReader(input), func(int, string) bool {
		n++
		return false
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n = 0
	require.NoError(t, ReadLines(strings.NewReader(""), func(int, string) bool {
		n++
		return true
	}))
	require.Equal(t, 0, n)
}
