package movie

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// format of a line in storage file:
// <id>,"<name>","<description>","<rating>",<run length>,<release year>,<is classic 0|1>
// string values are not escaped so they can't contain ',' or '"'
const fieldCount = 7

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func parseIntField(field string, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &FieldError{Field: field, Value: s, Err: err}
	}
	return n, nil
}

// ParseLine parses a single line from storage file.
// ok is false if the line doesn't have exactly 7 fields (such lines are skipped).
// err is a *FieldError if a numeric field is not a number.
func ParseLine(line string) (m Movie, ok bool, err error) {
	line = strings.TrimSuffix(line, "\r")
	parts := strings.Split(line, ",")
	if len(parts) != fieldCount {
		return m, false, nil
	}
	if m.ID, err = parseIntField("Id", parts[0]); err != nil {
		return m, false, err
	}
	m.Name = unquote(parts[1])
	m.Description = unquote(parts[2])
	m.Rating = unquote(parts[3])
	if m.RunLength, err = parseIntField("RunLength", parts[4]); err != nil {
		return m, false, err
	}
	if m.ReleaseYear, err = parseIntField("ReleaseYear", parts[5]); err != nil {
		return m, false, err
	}
	classic, err := parseIntField("IsClassic", parts[6])
	if err != nil {
		return m, false, err
	}
	m.IsClassic = classic != 0
	return m, true, nil
}

// AppendLine appends serialized m, including the trailing newline, to buf
// perf: allows re-using the buffer
func AppendLine(buf []byte, m *Movie) []byte {
	appendQuoted := func(s string) {
		buf = append(buf, ',', '"')
		buf = append(buf, s...)
		buf = append(buf, '"')
	}
	buf = strconv.AppendInt(buf, int64(m.ID), 10)
	appendQuoted(m.Name)
	appendQuoted(m.Description)
	appendQuoted(m.Rating)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(m.RunLength), 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(m.ReleaseYear), 10)
	if m.IsClassic {
		buf = append(buf, ",1\n"...)
	} else {
		buf = append(buf, ",0\n"...)
	}
	return buf
}

// MarshalLine serializes m as a single line, without the trailing newline
func MarshalLine(m *Movie) string {
	d := AppendLine(nil, m)
	return string(d[:len(d)-1])
}

// ReadLines calls fn for every line in r, without the line ending,
// until fn returns false. Lines can be of any length.
// lineNo starts at 1.
func ReadLines(r io.Reader, fn func(lineNo int, line string) bool) error {
	br := bufio.NewReader(r)
	lineNo := 0
	for {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if line == "" && err != nil {
			return nil
		}
		lineNo++
		if !fn(lineNo, strings.TrimSuffix(line, "\n")) {
			return nil
		}
		if err != nil {
			return nil
		}
	}
}
