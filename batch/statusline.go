package batch

import (
	"regexp"
	"strings"
)

const (
	HTTPVersion = "HTTP/1.1"
)

var (
	absoluteURIPattern  = regexp.MustCompile(`(?i)^(https?://[^?]*)(?:\?(.*))?$`)
	absolutePathPattern = regexp.MustCompile(`^(/[^?]*)(?:\?(.*))?$`)
	relativeURIPattern  = regexp.MustCompile(`^([^/?][^?]*)(?:\?(.*))?$`)
)

// StatusLine is the parsed first line of a query operation.
type StatusLine struct {
	Line    Line
	Method  Method
	Version string

	RawBaseURI              string
	RawODataPath            string
	RawQueryPath            string
	RawRequestURI           string
	RawServiceResolutionURI string
}

// ParseStatusLine parses "METHOD SP request-target SP HTTP/1.1".
//
// The request target may be an absolute URI below baseURI, an absolute path
// resolved with the single Host header of header, or a path relative to
// baseURI. The three forms are tried in that order.
func ParseStatusLine(line Line, header *Header, baseURI, serviceResolutionURI string) (*StatusLine, error) {
	parts := strings.Split(strings.TrimRight(line.Text, " \t\r\n"), " ")
	if len(parts) != 3 {
		return nil, newErrorf(InvalidStatusLineCode, line.Number, "expected 3 parts, got %d", len(parts))
	}
	method, ok := ParseMethod(strings.TrimSpace(parts[0]))
	if !ok {
		return nil, newErrorf(InvalidMethodCode, line.Number, "%q", parts[0])
	}
	version := strings.TrimSpace(parts[2])
	if version != HTTPVersion {
		return nil, newErrorf(InvalidHTTPVersionCode, line.Number, "%q", version)
	}
	s := &StatusLine{
		Line:                    line,
		Method:                  method,
		Version:                 version,
		RawBaseURI:              strings.TrimRight(baseURI, "/"),
		RawServiceResolutionURI: serviceResolutionURI,
	}
	if err := s.parseURI(parts[1], header); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *StatusLine) parseURI(target string, header *Header) error {
	if m := absoluteURIPattern.FindStringSubmatch(target); m != nil {
		return s.build(m[1], m[2])
	}
	if m := absolutePathPattern.FindStringSubmatch(target); m != nil {
		var host *HeaderField
		if header != nil {
			host = header.Field(HeaderHost)
		}
		if host == nil || host.Occurrences() != 1 {
			n := 0
			if host != nil {
				n = host.Occurrences()
			}
			return newErrorf(MissingMandatoryHeaderCode, s.Line.Number, "exactly one Host header is required, got %d", n)
		}
		absolute := baseScheme(s.RawBaseURI) + "://" + strings.TrimSpace(host.Values[0]) + m[1]
		if !hasBasePrefix(absolute, s.RawBaseURI) {
			absolute = s.RawBaseURI + m[1]
		}
		return s.build(absolute, m[2])
	}
	if m := relativeURIPattern.FindStringSubmatch(target); m != nil {
		return s.build(s.RawBaseURI+"/"+m[1], m[2])
	}
	return newErrorf(InvalidURICode, s.Line.Number, "malformed URI %q", target)
}

func (s *StatusLine) build(absolute, query string) error {
	if !hasBasePrefix(absolute, s.RawBaseURI) {
		return newErrorf(InvalidURICode, s.Line.Number, "host do not match: %q is not below %q", absolute, s.RawBaseURI)
	}
	s.RawODataPath = absolute[len(s.RawBaseURI):]
	s.RawQueryPath = query
	s.RawRequestURI = s.RawBaseURI + s.RawODataPath
	if query != "" {
		s.RawRequestURI += "?" + query
	}
	return nil
}

// ValidateMethod checks the method against the kind of the enclosing body
// part: change set members must modify data, top level operations must be GET.
func (s *StatusLine) ValidateMethod(changeSet bool) error {
	if changeSet {
		if !s.Method.IsChangeSetMethod() {
			return newErrorf(InvalidChangeSetMethodCode, s.Line.Number, "%s", s.Method)
		}
		return nil
	}
	if s.Method != MethodGet {
		return newErrorf(InvalidQueryOperationMethodCode, s.Line.Number, "%s", s.Method)
	}
	return nil
}

func hasBasePrefix(uri, base string) bool {
	if !strings.HasPrefix(uri, base) {
		return false
	}
	return len(uri) == len(base) || uri[len(base)] == '/'
}

func baseScheme(base string) string {
	if i := strings.Index(base, "://"); i > 0 {
		return base[:i]
	}
	return "http"
}
