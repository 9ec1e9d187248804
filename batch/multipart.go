package batch

import (
	"mime"
	"regexp"
	"strings"
)

const (
	ContentTypeMultipartMixed  = "multipart/mixed"
	ContentTypeApplicationHTTP = "application/http"
	BinaryEncoding             = "binary"
)

var (
	// RFC 2046 bchars, at most 70 characters, not ending with a space.
	boundaryPattern = regexp.MustCompile(`^[0-9A-Za-z'()+_,\-./:=? ]{0,69}[0-9A-Za-z'()+_,\-./:=?]$`)

	multipartMixedPattern    = regexp.MustCompile(`(?i)^multipart/mixed`)
	multipartBoundaryPattern = regexp.MustCompile(`(?i)^multipart/mixed\s*;.*boundary=.+$`)
	applicationHTTPPattern   = regexp.MustCompile(`(?i)^application/http\s*(;.*)?$`)
)

// Boundary extracts and validates the boundary parameter of a
// "multipart/mixed" content type. line is reported with any error.
func Boundary(contentType string, line int) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", NewError(MissingContentTypeCode, line, "")
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", newErrorf(InvalidContentTypeCode, line, "%q: %s", contentType, err)
	}
	if mediaType != ContentTypeMultipartMixed {
		return "", newErrorf(InvalidContentTypeCode, line, "expected %s, got %q", ContentTypeMultipartMixed, mediaType)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return "", NewError(MissingBoundaryDelimiterCode, line, "content type has no boundary parameter")
	}
	if !boundaryPattern.MatchString(boundary) {
		return "", newErrorf(InvalidBoundaryCode, line, "%q", boundary)
	}
	return boundary, nil
}

// Chunk is the content of one part of a multipart body.
type Chunk struct {
	// Line number of the delimiter opening the part.
	Delimiter int
	Lines     []Line
}

// SplitByBoundary partitions lines into the parts delimited by "--boundary"
// lines and terminated by "--boundary--". The preamble before the first
// delimiter and everything after the close delimiter are dropped. The CRLF
// preceding each delimiter belongs to the delimiter and is removed from the
// last line of the part. line is the last line before lines and is reported
// when lines is empty.
func SplitByBoundary(lines []Line, boundary string, line int) ([]Chunk, error) {
	delimiter := "--" + boundary
	closeDelimiter := delimiter + "--"

	var (
		chunks  []Chunk
		current = Chunk{Delimiter: line}
		closed  bool
		last    = line
	)
	for _, l := range lines {
		last = l.Number
		switch strings.TrimRight(l.Text, " \t\r\n\v\f") {
		case closeDelimiter:
			current.Lines = trimLastLine(current.Lines)
			chunks = append(chunks, current)
			closed = true
		case delimiter:
			current.Lines = trimLastLine(current.Lines)
			chunks = append(chunks, current)
			current = Chunk{Delimiter: l.Number}
		default:
			current.Lines = append(current.Lines, l)
		}
		if closed {
			break
		}
	}

	// preamble
	if len(chunks) > 0 {
		chunks = chunks[1:]
	}

	if !closed {
		return nil, newErrorf(MissingCloseDelimiterCode, last, "no %q line found", closeDelimiter)
	}
	if len(chunks) == 0 {
		return nil, newErrorf(MissingBoundaryDelimiterCode, last, "no %q line found", delimiter)
	}
	return chunks, nil
}

func trimLastLine(lines []Line) []Line {
	if len(lines) > 0 {
		lines[len(lines)-1] = RemoveEndingCRLF(lines[len(lines)-1])
	}
	return lines
}

func isMultipartMixed(contentTypes []string) bool {
	for _, ct := range contentTypes {
		if multipartMixedPattern.MatchString(strings.TrimSpace(ct)) {
			return true
		}
	}
	return false
}
