package batch

import (
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	crlf = "\r\n"
)

// Line is one line of a batch body. Text keeps the original CRLF terminator
// (the last line of a body may have none). Number is 1-based.
type Line struct {
	Text   string
	Number int
}

func (l Line) String() string {
	return l.Text
}

// Reports whether the line is empty after trimming whitespace.
func (l Line) IsBlank() bool {
	return strings.TrimSpace(l.Text) == ""
}

// LineReader is a restartable reader over the lines of an in-memory body.
// Only CRLF terminates a line; a bare LF or CR is content.
type LineReader struct {
	data   string
	offset int
	number int
}

func NewLineReader(data string) *LineReader {
	return &LineReader{data: data}
}

// Returns the next line and true, or a zero Line and false at the end of data.
func (r *LineReader) Next() (Line, bool) {
	if r.offset >= len(r.data) {
		return Line{}, false
	}
	rest := r.data[r.offset:]
	end := len(rest)
	if idx := strings.Index(rest, crlf); idx >= 0 {
		end = idx + len(crlf)
	}
	r.offset += end
	r.number++
	return Line{Text: rest[:end], Number: r.number}, true
}

// Rewinds the reader to the first line.
func (r *LineReader) Reset() {
	r.offset = 0
	r.number = 0
}

// Splits data into lines.
func ReadLines(data string) []Line {
	var lines []Line
	r := NewLineReader(data)
	for line, ok := r.Next(); ok; line, ok = r.Next() {
		lines = append(lines, line)
	}
	return lines
}

// Reads the whole body from r and splits it into lines.
func ReadAllLines(r io.Reader) ([]Line, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading batch body")
	}
	return ReadLines(string(data)), nil
}

// RemoveEndingCRLF strips the trailing terminator of a line together with any
// whitespace that follows it. Interior terminators are never touched, so
// applying it twice gives the same result as applying it once.
func RemoveEndingCRLF(l Line) Line {
	trimmed := strings.TrimRight(l.Text, " \t\r\n\v\f")
	tail := l.Text[len(trimmed):]
	idx := strings.Index(tail, crlf)
	if idx < 0 {
		return l
	}
	return Line{Text: l.Text[:len(trimmed)+idx], Number: l.Number}
}

func joinLines(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Text)
	}
	return b.String()
}
