package batch

import (
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Content is the payload of a BodyPart. It is either a *QueryOperation or a
// *ChangeSet; consumers switch on the concrete type.
type Content interface {
	isContent()
}

// QueryOperation is one HTTP-like sub-request: status line, headers and body.
type QueryOperation struct {
	StatusLine Line
	Header     *Header
	Body       []Line
}

func (*QueryOperation) isContent() {}

// ChangeSet is a nested multipart envelope whose members form an atomic unit.
type ChangeSet struct {
	Boundary string
	Members  []*ChangeSetMember
}

func (*ChangeSet) isContent() {}

// ChangeSetMember wraps one operation of a change set together with the
// member's own MIME headers.
type ChangeSetMember struct {
	Header    *Header
	Operation *QueryOperation
}

// BodyPart is one top-level unit of a batch.
type BodyPart struct {
	Header  *Header
	Content Content
}

func (p *BodyPart) IsChangeSet() bool {
	_, ok := p.Content.(*ChangeSet)
	return ok
}

// ParseBodyPart parses one top-level body part. boundary is the enclosing
// batch boundary; a change set must declare a different one.
func ParseBodyPart(chunk Chunk, boundary string, strict bool) (*BodyPart, error) {
	header, rest, last := consumeHeaders(chunk.Lines, chunk.Delimiter)
	rest, last, err := consumeBlankLine(rest, strict, last)
	if err != nil {
		return nil, err
	}
	contentTypes := header.Values(HeaderContentType)
	if len(contentTypes) == 0 {
		return nil, NewError(MissingContentTypeCode, header.Line(), "body part has no Content-Type")
	}
	part := &BodyPart{Header: header}
	if isMultipartMixed(contentTypes) {
		part.Content, err = parseChangeSet(header, rest, boundary, strict, last)
	} else {
		part.Content, err = parseQueryOperation(rest, strict, last)
	}
	if err != nil {
		return nil, err
	}
	return part, nil
}

func parseChangeSet(header *Header, lines []Line, boundary string, strict bool, last int) (*ChangeSet, error) {
	field := header.Field(HeaderContentType)
	changeSetBoundary, err := Boundary(field.Value(), field.Line)
	if err != nil {
		return nil, err
	}
	if changeSetBoundary == boundary {
		return nil, newErrorf(InvalidBoundaryCode, field.Line, "change set boundary %q equals the batch boundary", boundary)
	}
	chunks, err := SplitByBoundary(lines, changeSetBoundary, last)
	if err != nil {
		return nil, err
	}
	cs := &ChangeSet{Boundary: changeSetBoundary}
	for _, chunk := range chunks {
		member, err := parseChangeSetMember(chunk, strict)
		if err != nil {
			return nil, err
		}
		cs.Members = append(cs.Members, member)
	}
	return cs, nil
}

func parseChangeSetMember(chunk Chunk, strict bool) (*ChangeSetMember, error) {
	header, rest, last := consumeHeaders(chunk.Lines, chunk.Delimiter)
	rest, last, err := consumeBlankLine(rest, strict, last)
	if err != nil {
		return nil, err
	}
	// Change sets nest exactly one level deep.
	if isMultipartMixed(header.Values(HeaderContentType)) {
		field := header.Field(HeaderContentType)
		return nil, NewError(InvalidContentTypeCode, field.Line, "change sets must not be nested")
	}
	op, err := parseQueryOperation(rest, strict, last)
	if err != nil {
		return nil, err
	}
	return &ChangeSetMember{Header: header, Operation: op}, nil
}

// parseQueryOperation reads a request line, its headers and the body. last is
// the line preceding lines.
func parseQueryOperation(lines []Line, strict bool, last int) (*QueryOperation, error) {
	if len(lines) == 0 || lines[0].IsBlank() {
		if len(lines) > 0 {
			last = lines[0].Number
		}
		return nil, NewError(InvalidStatusLineCode, last, "missing request line")
	}
	header, rest, last := consumeHeaders(lines[1:], lines[0].Number)
	rest, _, err := consumeBlankLine(rest, strict, last)
	if err != nil {
		return nil, err
	}
	return &QueryOperation{
		StatusLine: lines[0],
		Header:     header,
		Body:       rest,
	}, nil
}

// consumeHeaders reads header lines up to the first line that is not one. It
// returns the number of the last header line read, or last when there is none.
func consumeHeaders(lines []Line, last int) (*Header, []Line, int) {
	line := last
	if len(lines) > 0 {
		line = lines[0].Number
	}
	header := NewHeader(line)
	i := 0
	for ; i < len(lines); i++ {
		name, value, ok := parseHeaderLine(lines[i].Text)
		if !ok {
			break
		}
		// Media type parameters may legally contain commas.
		if strings.EqualFold(name, HeaderContentType) {
			header.Add(name, value, lines[i].Number)
		} else {
			header.AddValues(name, SplitValuesByComma(value), lines[i].Number)
		}
		last = lines[i].Number
	}
	return header, lines[i:], last
}

func parseHeaderLine(text string) (string, string, bool) {
	text = strings.TrimRight(text, " \t\r\n")
	if strings.ContainsAny(text, "\r\n") {
		return "", "", false
	}
	name, value, found := strings.Cut(text, ":")
	if !found || !httpguts.ValidHeaderFieldName(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

func consumeBlankLine(lines []Line, strict bool, last int) ([]Line, int, error) {
	if len(lines) > 0 && lines[0].IsBlank() {
		return lines[1:], lines[0].Number, nil
	}
	if strict {
		if len(lines) > 0 {
			last = lines[0].Number
		}
		return nil, last, NewError(MissingBlankLineCode, last, "")
	}
	return lines, last, nil
}
