package batch

import (
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Headers that only make sense on the outer batch request.
var forbiddenHeaders = []string{
	"Authorization",
	"Expect",
	"From",
	"Max-Forwards",
	"Range",
	"TE",
}

// Transformer turns parsed body parts into synthesized requests. It holds no
// state besides its configuration and may be shared between goroutines.
type Transformer struct {
	BaseURI              string
	ServiceResolutionURI string
}

func NewTransformer(baseURI, serviceResolutionURI string) Transformer {
	return Transformer{
		BaseURI:              baseURI,
		ServiceResolutionURI: serviceResolutionURI,
	}
}

// Transform validates part and synthesizes one Request per operation. It
// either succeeds for the whole body part or returns the first violation.
func (t Transformer) Transform(part *BodyPart) (RequestPart, error) {
	if err := validateBodyPartHeader(part); err != nil {
		return RequestPart{}, err
	}
	result := RequestPart{ChangeSet: part.IsChangeSet()}
	switch c := part.Content.(type) {
	case *QueryOperation:
		req, err := t.createRequest(c, false)
		if err != nil {
			return RequestPart{}, err
		}
		result.Requests = []*Request{req}
	case *ChangeSet:
		for _, member := range c.Members {
			op, err := mergeContentID(member)
			if err != nil {
				return RequestPart{}, err
			}
			if err := validateApplicationHTTP(member.Header); err != nil {
				return RequestPart{}, err
			}
			req, err := t.createRequest(op, true)
			if err != nil {
				return RequestPart{}, err
			}
			result.Requests = append(result.Requests, req)
		}
	default:
		return RequestPart{}, NewError(InvalidContentCode, part.Header.Line(), "body part has no content")
	}
	return result, nil
}

func (t Transformer) createRequest(op *QueryOperation, changeSet bool) (*Request, error) {
	status, err := ParseStatusLine(op.StatusLine, op.Header, t.BaseURI, t.ServiceResolutionURI)
	if err != nil {
		return nil, err
	}
	if err := status.ValidateMethod(changeSet); err != nil {
		return nil, err
	}
	if err := validateHost(op.Header, status.RawBaseURI); err != nil {
		return nil, err
	}
	if err := validateBody(status, op); err != nil {
		return nil, err
	}
	body, err := bodyStream(status, op)
	if err != nil {
		return nil, err
	}
	if err := validateForbiddenHeaders(op.Header); err != nil {
		return nil, err
	}
	return &Request{
		Method:                  status.Method,
		RawBaseURI:              status.RawBaseURI,
		RawODataPath:            status.RawODataPath,
		RawQueryPath:            status.RawQueryPath,
		RawRequestURI:           status.RawRequestURI,
		RawServiceResolutionURI: status.RawServiceResolutionURI,
		Header:                  op.Header.Clone(),
		Body:                    body,
	}, nil
}

// mergeContentID returns the member's operation carrying the effective
// Content-ID. The member's own Content-ID replaces the operation's one. The
// parsed operation itself is left untouched.
func mergeContentID(member *ChangeSetMember) (*QueryOperation, error) {
	outer, err := contentIDField(member.Header)
	if err != nil {
		return nil, err
	}
	inner, err := contentIDField(member.Operation.Header)
	if err != nil {
		return nil, err
	}
	if outer == nil && inner == nil {
		return nil, NewError(MissingContentIDCode, member.Header.Line(), "change set member has no Content-ID")
	}
	op := *member.Operation
	if outer != nil {
		op.Header = member.Operation.Header.Clone()
		op.Header.Replace(outer)
	}
	return &op, nil
}

func contentIDField(h *Header) (*HeaderField, error) {
	field := h.Field(HeaderContentID)
	if field != nil && field.Occurrences() > 1 {
		return nil, newErrorf(InvalidHeaderCode, field.Line, "%s has %d values", HeaderContentID, field.Occurrences())
	}
	return field, nil
}

func validateBodyPartHeader(part *BodyPart) error {
	if part.IsChangeSet() {
		return validateContentType(part.Header, multipartBoundaryPattern, ContentTypeMultipartMixed+";boundary=...")
	}
	return validateApplicationHTTP(part.Header)
}

func validateApplicationHTTP(h *Header) error {
	if err := validateContentType(h, applicationHTTPPattern, ContentTypeApplicationHTTP); err != nil {
		return err
	}
	return validateContentTransferEncoding(h)
}

func validateContentType(h *Header, re *regexp.Regexp, expected string) error {
	field := h.Field(HeaderContentType)
	if field == nil {
		return NewError(MissingContentTypeCode, h.Line(), "")
	}
	if !h.IsMatching(HeaderContentType, re) {
		return newErrorf(InvalidContentTypeCode, field.Line, "expected %s, got %q", expected, field.Value())
	}
	return nil
}

func validateContentTransferEncoding(h *Header) error {
	field := h.Field(HeaderContentTransferEncoding)
	if field == nil {
		return NewError(MissingContentTransferEncodingCode, h.Line(), "")
	}
	if field.Occurrences() != 1 {
		return newErrorf(InvalidHeaderCode, field.Line, "%s has %d values", HeaderContentTransferEncoding, field.Occurrences())
	}
	if !strings.EqualFold(field.Values[0], BinaryEncoding) {
		return newErrorf(InvalidContentTransferEncodingCode, field.Line, "expected %s, got %q", BinaryEncoding, field.Values[0])
	}
	return nil
}

// validateHost checks an optional Host header against the authority of the
// base URI.
func validateHost(h *Header, baseURI string) error {
	field := h.Field(HeaderHost)
	if field == nil {
		return nil
	}
	if field.Occurrences() != 1 {
		return newErrorf(InvalidHostCode, field.Line, "%s has %d values", HeaderHost, field.Occurrences())
	}
	host := strings.TrimSpace(field.Values[0])
	if !httpguts.ValidHostHeader(host) {
		return newErrorf(InvalidHostCode, field.Line, "%q", host)
	}
	base, err := url.Parse(baseURI)
	if err != nil || !strings.EqualFold(base.Host, host) {
		return newErrorf(InvalidHostCode, field.Line, "%q does not match %q", host, baseURI)
	}
	return nil
}

func validateBody(status *StatusLine, op *QueryOperation) error {
	if status.Method != MethodGet {
		return nil
	}
	if len(op.Body) > 1 || (len(op.Body) == 1 && !op.Body[0].IsBlank()) {
		return NewError(InvalidContentCode, status.Line.Number, "GET request must not have a body")
	}
	return nil
}

func bodyStream(status *StatusLine, op *QueryOperation) (io.ReadCloser, error) {
	length, err := contentLength(op.Header)
	if err != nil {
		return nil, err
	}
	if status.Method == MethodGet {
		return io.NopCloser(strings.NewReader("")), nil
	}
	content := joinLines(op.Body)
	if length >= 0 && length < len(content) {
		content = content[:length]
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// contentLength returns the declared Content-Length, or -1 if there is none.
func contentLength(h *Header) (int, error) {
	field := h.Field(HeaderContentLength)
	if field == nil {
		return -1, nil
	}
	if field.Occurrences() != 1 {
		return 0, newErrorf(InvalidHeaderCode, field.Line, "%s has %d values", HeaderContentLength, field.Occurrences())
	}
	value := field.Values[0]
	if value == "" {
		return 0, NewError(MissingContentLengthCode, field.Line, "empty value")
	}
	n, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, newErrorf(InvalidHeaderCode, field.Line, "%s %q", HeaderContentLength, value)
	}
	if n < 0 {
		return 0, newErrorf(InvalidContentLengthCode, field.Line, "%d", n)
	}
	return int(n), nil
}

func validateForbiddenHeaders(h *Header) error {
	for _, name := range forbiddenHeaders {
		if field := h.Field(name); field != nil {
			return newErrorf(ForbiddenHeaderCode, field.Line, "%s", field.Name)
		}
	}
	return nil
}
