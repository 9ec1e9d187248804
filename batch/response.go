package batch

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Response is the outcome of one executed Request.
type Response struct {
	StatusCode int
	Header     *Header
	Body       []byte
}

// Returns new Response with the given status and no headers.
func NewResponse(statusCode int) *Response {
	return &Response{
		StatusCode: statusCode,
		Header:     NewHeader(0),
	}
}

// Returns the Content-ID of the response, empty if it has none.
func (r *Response) ContentID() string {
	v, _ := r.Header.Get(HeaderContentID)
	return v
}

// ResponsePart mirrors one RequestPart. A failed change set is reported as a
// plain part holding only the failing response.
type ResponsePart struct {
	ChangeSet bool
	Responses []*Response
}

type BatchResponse []ResponsePart

// Returns a unique boundary such as "batch_<uuid>".
func NewBoundary(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Returns the Content-Type of a multipart response using boundary.
func MultipartContentType(boundary string) string {
	return ContentTypeMultipartMixed + "; boundary=" + boundary
}

// WriteResponse encodes parts as a multipart/mixed body delimited by boundary.
// Change sets get their own nested "changeset_<uuid>" boundary.
func WriteResponse(w io.Writer, boundary string, parts BatchResponse) error {
	var b bytes.Buffer
	for _, part := range parts {
		if part.ChangeSet {
			b.WriteString("--" + boundary + crlf)
			writeChangeSet(&b, part, NewBoundary("changeset"))
			continue
		}
		for _, resp := range part.Responses {
			b.WriteString("--" + boundary + crlf)
			writeBodyPart(&b, resp)
		}
	}
	b.WriteString("--" + boundary + "--" + crlf)
	if _, err := w.Write(b.Bytes()); err != nil {
		return errors.Wrap(err, "writing batch response")
	}
	return nil
}

func writeChangeSet(b *bytes.Buffer, part ResponsePart, boundary string) {
	writeHeaderLine(b, HeaderContentType, MultipartContentType(boundary))
	b.WriteString(crlf)
	for _, resp := range part.Responses {
		b.WriteString("--" + boundary + crlf)
		writeBodyPart(b, resp)
	}
	b.WriteString("--" + boundary + "--" + crlf)
}

func writeBodyPart(b *bytes.Buffer, resp *Response) {
	writeHeaderLine(b, HeaderContentType, ContentTypeApplicationHTTP)
	writeHeaderLine(b, HeaderContentTransferEncoding, BinaryEncoding)
	if id := resp.ContentID(); id != "" {
		writeHeaderLine(b, HeaderContentID, id)
	}
	b.WriteString(crlf)

	b.WriteString(HTTPVersion + " " + strconv.Itoa(resp.StatusCode) + " " + http.StatusText(resp.StatusCode) + crlf)
	if resp.Header != nil {
		for _, f := range resp.Header.Fields() {
			if strings.EqualFold(f.Name, HeaderContentID) || strings.EqualFold(f.Name, HeaderContentLength) {
				continue
			}
			writeHeaderLine(b, f.Name, f.Value())
		}
	}
	if len(resp.Body) > 0 {
		writeHeaderLine(b, HeaderContentLength, strconv.Itoa(len(resp.Body)))
	}
	b.WriteString(crlf)
	b.Write(resp.Body)
	b.WriteString(crlf)
}

func writeHeaderLine(b *bytes.Buffer, name, value string) {
	b.WriteString(name + ": " + value + crlf)
}
