// Package journal is an append-only audit trail of changes to the movie catalog.
//
// The format is the same as siser records:
//
//	--- ${size} ${timestamp_in_unix_epoch_ms} ${name}\n
//	${payload}\n
//
// name is the operation (add, update, delete, restore) and payload is
// a toon-encoded map of values describing the change.
// Every entry has a unique "op" value.
package journal

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/toon-format/toon-go"
)

var hdrPrefix = []byte("--- ")

// Entry is a single record read from the journal
type Entry struct {
	Name      string
	Timestamp time.Time
	// toon-encoded payload
	Payload string
	// offset of the entry in the file
	Offset int64
}

// Writer appends entries to a journal file.
// Methods are safe to call on nil Writer (they do nothing) and
// from multiple goroutines.
type Writer struct {
	Path string
	// if true, will call file.Sync() after every write
	SyncWrite bool

	file     *os.File
	writeBuf bytes.Buffer
	mu       sync.Mutex
}

// Open opens (creating if needed) a journal file for appending
func Open(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		Path: path,
		file: f,
	}, nil
}

func toStr(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if v == nil {
		return "", fmt.Errorf("key is nil")
	}
	rt := reflect.TypeOf(v)
	switch rt.Kind() {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Pointer, reflect.UnsafePointer:
		return "", fmt.Errorf("key %v is of kind %v", v, rt.Kind())
	}
	return fmt.Sprintf("%v", v), nil
}

// MarshalPayload encodes key / value pairs as toon
func MarshalPayload(vals ...any) ([]byte, error) {
	n := len(vals)
	if n%2 != 0 {
		return nil, fmt.Errorf("odd number of values (%d), must be key / value pairs", n)
	}
	m := map[string]any{}
	for i := 0; i < n; i += 2 {
		k, err := toStr(vals[i])
		if err != nil {
			return nil, err
		}
		m[k] = vals[i+1]
	}
	return toon.Marshal(m)
}

// Append writes an entry for operation name with key / value pairs.
// Returns unique id of the operation.
func (w *Writer) Append(name string, vals ...any) (string, error) {
	if w == nil {
		return "", nil
	}
	opID := uuid.NewString()
	vals = append([]any{"op", opID}, vals...)
	d, err := MarshalPayload(vals...)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return "", os.ErrClosed
	}
	line := MarshalEntry(name, time.Now().UTC(), d, &w.writeBuf)
	if _, err = w.file.Write(line); err != nil {
		return "", err
	}
	if w.SyncWrite {
		if err = w.file.Sync(); err != nil {
			return "", err
		}
	}
	return opID, nil
}

// Close closes the journal file
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

// MarshalEntry serializes a single entry. If wb is given, it's re-used.
func MarshalEntry(name string, t time.Time, d []byte, wb *bytes.Buffer) []byte {
	if wb == nil {
		wb = &bytes.Buffer{}
	} else {
		wb.Reset()
	}
	wb.Grow(len(hdrPrefix) + len(name) + len(d) + 32)

	wb.Write(hdrPrefix)
	wb.WriteString(strconv.Itoa(len(d)))
	wb.WriteByte(' ')
	wb.WriteString(strconv.FormatInt(t.UnixMilli(), 10))
	if name != "" {
		wb.WriteByte(' ')
		wb.WriteString(name)
	}
	wb.WriteByte('\n')
	// for readability every entry ends with a newline
	if n := len(d); n > 0 {
		wb.Write(d)
		if d[n-1] != '\n' {
			wb.WriteByte('\n')
		}
	}
	return wb.Bytes()
}

func parseHeader(hdr []byte, e *Entry) (int, error) {
	rest, ok := bytes.CutPrefix(bytes.TrimSuffix(hdr, []byte("\n")), hdrPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected header '%s'", string(hdr))
	}
	parts := bytes.SplitN(rest, []byte(" "), 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("unexpected header '%s'", string(hdr))
	}
	size, err := strconv.Atoi(string(parts[0]))
	if err != nil || size < 0 {
		return 0, fmt.Errorf("invalid size in header '%s'", string(hdr))
	}
	ms, err := strconv.ParseInt(string(parts[1]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp in header '%s'", string(hdr))
	}
	e.Timestamp = time.UnixMilli(ms).UTC()
	e.Name = ""
	if len(parts) == 3 {
		e.Name = string(parts[2])
	}
	return size, nil
}

// ReadFrom returns an iterator over entries in r.
// Call the returned error function after iteration to check for errors.
func ReadFrom(r io.Reader) (iter.Seq[Entry], func() error) {
	var iterErr error
	seq := func(yield func(Entry) bool) {
		br := bufio.NewReader(r)
		var pos int64
		for {
			hdr, err := br.ReadBytes('\n')
			if err == io.EOF && len(hdr) == 0 {
				return
			}
			if err != nil && err != io.EOF {
				iterErr = err
				return
			}
			e := Entry{Offset: pos}
			size, err := parseHeader(hdr, &e)
			if err != nil {
				iterErr = err
				return
			}
			pos += int64(len(hdr))
			d := make([]byte, size)
			if _, err = io.ReadFull(br, d); err != nil {
				iterErr = fmt.Errorf("entry at offset %d: %w", e.Offset, err)
				return
			}
			pos += int64(size)
			if size > 0 && d[size-1] != '\n' {
				// padding newline added by MarshalEntry
				if _, err = br.Discard(1); err != nil {
					iterErr = err
					return
				}
				pos++
			}
			e.Payload = string(bytes.TrimSuffix(d, []byte("\n")))
			if !yield(e) {
				return
			}
		}
	}
	return seq, func() error { return iterErr }
}

// Read returns an iterator over entries in the journal file at path.
// Missing file has no entries.
func Read(path string) (iter.Seq[Entry], func() error) {
	var iterErr error
	seq := func(yield func(Entry) bool) {
		f, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				iterErr = err
			}
			return
		}
		defer f.Close()
		entries, errFn := ReadFrom(f)
		for e := range entries {
			if !yield(e) {
				break
			}
		}
		iterErr = errFn()
	}
	return seq, func() error { return iterErr }
}
