package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	logFile    *WriteDaily
	errorsFile *WriteDaily

	// if true, Verbosef() will log messages
	Verbose bool

	// Logf echoes messages here. Stderr so that it doesn't mix
	// with output of commands.
	Output io.Writer = os.Stderr

	mu sync.Mutex
)

// WriteDaily writes to a file that changes every day.
// Files are named ${Dir}/YYYY-MM-DD.txt
type WriteDaily struct {
	Dir string

	// for tests
	now func() time.Time

	currentDate int // YYYYMMDD format
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
		now: time.Now,
	}
}

// dayFromTime converts a time.Time to YYYYMMDD integer
func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Path returns path of the log file for day t
func (w *WriteDaily) Path(t time.Time) string {
	return filepath.Join(w.Dir, t.UTC().Format("2006-01-02")+".txt")
}

// writer returns today's log file, opening a new one if the day changed.
// must be called with w.mu held
func (w *WriteDaily) writer() (io.Writer, error) {
	now := w.now().UTC()
	today := dayFromTime(now)

	if w.file != nil && w.currentDate != today {
		if err := w.close(); err != nil {
			return nil, err
		}
	}
	if w.file == nil {
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(w.Path(now), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w.file = f
		w.currentDate = today
	}
	return w.file, nil
}

// Write writes data to today's log file
// it's safe to call on nil receiver
func (w *WriteDaily) Write(d []byte) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	wr, err := w.writer()
	if err != nil {
		return err
	}
	_, err = wr.Write(d)
	return err
}

// WriteString writes a string to today's log file
// it's safe to call on nil receiver
func (w *WriteDaily) WriteString(s string) error {
	return w.Write([]byte(s))
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = 0
	return err
}

// Close closes the log file
// it's safe to call on nil receiver
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		_ = w.file.Sync()
	}
	return w.close()
}

type Config struct {
	// directory where log files are stored. Regular logs go to ${Dir}/log,
	// errors to ${Dir}/errors
	// if empty, we only log to Output
	Dir     string
	Verbose bool
	// if not nil, over-writes Output
	Output io.Writer
}

// Init initializes the logging system
func Init(config *Config) {
	mu.Lock()
	defer mu.Unlock()
	closeFiles()
	Verbose = config.Verbose
	if config.Output != nil {
		Output = config.Output
	}
	if config.Dir == "" {
		return
	}
	logFile = NewWriteDaily(filepath.Join(config.Dir, "log"))
	errorsFile = NewWriteDaily(filepath.Join(config.Dir, "errors"))
}

func closeFiles() {
	_ = logFile.Close()
	_ = errorsFile.Close()
	logFile = nil
	errorsFile = nil
}

// Close closes log files
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeFiles()
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(Output, s)
	_ = logFile.WriteString(s)
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		s := frame.File + ":" + strconv.Itoa(frame.Line)
		cs = append(cs, s)
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

// Errorf logs an error message along with the callstack.
// Errors are also written to a separate errors log.
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	cs := GetCallstack(1)
	s = fmt.Sprintf("%s\n%s\n", s, cs)
	Logf("%s", s)
	mu.Lock()
	_ = errorsFile.WriteString(s)
	mu.Unlock()
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		// shouldn't happen but just in case
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}
