package batch

import (
	"io"
)

// Parser decodes batch request bodies. It is configured once with the service
// base URI and carries no per-request state.
type Parser struct {
	BaseURI              string
	ServiceResolutionURI string

	// Strict requires the blank line after every header block.
	Strict bool
}

// Returns new Parser for the service rooted at baseURI.
func NewParser(baseURI, serviceResolutionURI string, strict bool) *Parser {
	return &Parser{
		BaseURI:              baseURI,
		ServiceResolutionURI: serviceResolutionURI,
		Strict:               strict,
	}
}

// Parse decodes a whole batch body. contentType is the Content-Type of the
// batch request itself. The first violation anywhere aborts the batch.
func (p *Parser) Parse(body io.Reader, contentType string) (BatchRequest, error) {
	lines, boundary, err := p.prepare(body, contentType)
	if err != nil {
		return nil, err
	}
	outcomes, err := p.parseLines(lines, boundary, true)
	if err != nil {
		return nil, err
	}
	result := make(BatchRequest, 0, len(outcomes))
	for _, o := range outcomes {
		result = append(result, o.RequestPart)
	}
	return result, nil
}

// ParseEach decodes a batch body isolating failures per body part: a violation
// inside a body part (or anywhere inside a change set) is reported in that
// part's Outcome, while violations of the batch envelope fail the whole call.
func (p *Parser) ParseEach(body io.Reader, contentType string) ([]Outcome, error) {
	lines, boundary, err := p.prepare(body, contentType)
	if err != nil {
		return nil, err
	}
	return p.parseLines(lines, boundary, false)
}

// ParseLines is ParseEach for a body that was already split into lines.
func (p *Parser) ParseLines(lines []Line, boundary string) ([]Outcome, error) {
	return p.parseLines(lines, boundary, false)
}

func (p *Parser) prepare(body io.Reader, contentType string) ([]Line, string, error) {
	boundary, err := Boundary(contentType, 0)
	if err != nil {
		return nil, "", err
	}
	lines, err := ReadAllLines(body)
	if err != nil {
		return nil, "", err
	}
	return lines, boundary, nil
}

func (p *Parser) parseLines(lines []Line, boundary string, failFast bool) ([]Outcome, error) {
	chunks, err := SplitByBoundary(lines, boundary, 1)
	if err != nil {
		return nil, err
	}
	t := NewTransformer(p.BaseURI, p.ServiceResolutionURI)
	outcomes := make([]Outcome, 0, len(chunks))
	for _, chunk := range chunks {
		o := p.parsePart(t, chunk, boundary)
		if o.Err != nil && failFast {
			return nil, o.Err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

func (p *Parser) parsePart(t Transformer, chunk Chunk, boundary string) Outcome {
	part, err := ParseBodyPart(chunk, boundary, p.Strict)
	if err != nil {
		return Outcome{RequestPart: RequestPart{ChangeSet: declaresChangeSet(chunk)}, Err: err}
	}
	rp, err := t.Transform(part)
	if err != nil {
		return Outcome{RequestPart: RequestPart{ChangeSet: part.IsChangeSet()}, Err: err}
	}
	return Outcome{RequestPart: rp}
}

// declaresChangeSet reports whether the headers of a part announce a change
// set, so a part that fails to parse is still answered as one.
func declaresChangeSet(chunk Chunk) bool {
	header, _, _ := consumeHeaders(chunk.Lines, chunk.Delimiter)
	return isMultipartMixed(header.Values(HeaderContentType))
}
