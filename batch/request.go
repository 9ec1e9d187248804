package batch

import (
	"io"
)

// Request is a validated sub-request synthesized from one query operation,
// ready to be handed to a dispatcher. The raw URI fields always satisfy
// RawRequestURI == RawBaseURI + RawODataPath [+ "?" + RawQueryPath].
type Request struct {
	Method Method

	RawBaseURI              string
	RawODataPath            string
	RawQueryPath            string
	RawRequestURI           string
	RawServiceResolutionURI string

	Header *Header

	// Single-consumer body. The dispatcher drains and closes it.
	Body io.ReadCloser
}

// Returns the Content-ID of the request, empty if it has none.
func (r *Request) ContentID() string {
	v, _ := r.Header.Get(HeaderContentID)
	return v
}

// Replaces the OData path and keeps RawRequestURI consistent with it.
func (r *Request) SetODataPath(path string) {
	r.RawODataPath = path
	r.RawRequestURI = r.RawBaseURI + path
	if r.RawQueryPath != "" {
		r.RawRequestURI += "?" + r.RawQueryPath
	}
}

// RequestPart holds the requests of one body part. Requests of a change set
// must be executed as one atomic unit.
type RequestPart struct {
	ChangeSet bool
	Requests  []*Request
}

// BatchRequest is the parsed batch: one RequestPart per body part in document
// order.
type BatchRequest []RequestPart

// Outcome is the result of parsing one body part when failures are isolated
// per body part.
type Outcome struct {
	RequestPart
	Err error
}
