package batch

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}

func testResponses() BatchResponse {
	ok := NewResponse(200)
	ok.Header.Add("Content-Type", "application/json", 0)
	ok.Body = []byte(`{"a":1}`)

	created := NewResponse(201)
	created.Header.Add(HeaderContentID, "1", 0)
	created.Header.Add(HeaderLocation, testBaseURI+"/Employees(7)", 0)

	noContent := NewResponse(204)
	noContent.Header.Add(HeaderContentID, "2", 0)

	return BatchResponse{
		{Responses: []*Response{ok}},
		{ChangeSet: true, Responses: []*Response{created, noContent}},
	}
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, "batch_x", testResponses()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, message(
		"--batch_x",
		"Content-Type: application/http",
		"Content-Transfer-Encoding: binary",
		"",
		"HTTP/1.1 200 OK",
		"Content-Type: application/json",
		"Content-Length: 7",
		"",
		`{"a":1}`,
	)), out)
	assert.True(t, strings.HasSuffix(out, "--batch_x--\r\n"))
	assert.Contains(t, out, "HTTP/1.1 201 Created\r\n")
	assert.Contains(t, out, "Content-ID: 1\r\n")
	assert.Contains(t, out, "HTTP/1.1 204 No Content\r\n")
	assert.Equal(t, 1, strings.Count(out, "Content-ID: 2\r\n"))
}

func TestWriteResponseStructure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteResponse(&buf, "batch_x", testResponses()))

	parts, err := SplitByBoundary(ReadLines(buf.String()), "batch_x", 1)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	header, rest, last := consumeHeaders(parts[1].Lines, parts[1].Delimiter)
	ct, ok := header.Get(HeaderContentType)
	require.True(t, ok)
	changeSetBoundary, err := Boundary(ct, 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(changeSetBoundary, "changeset_"))

	members, err := SplitByBoundary(rest, changeSetBoundary, last)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestWriteResponseError(t *testing.T) {
	assert.Error(t, WriteResponse(failingWriter{}, "batch_x", testResponses()))
}

func TestNewBoundary(t *testing.T) {
	a, b := NewBoundary("batch"), NewBoundary("batch")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "batch_"))
	_, err := Boundary(MultipartContentType(a), 0)
	assert.NoError(t, err)
}

func TestErrorFormatting(t *testing.T) {
	err := NewError(ForbiddenHeaderCode, 12, "Authorization")
	assert.Equal(t, "batch: line 12: Forbidden header: Authorization", err.Error())
	assert.Equal(t, "FORBIDDEN_HEADER", ErrorCodeString(err.Code))
	assert.Equal(t, "batch: line 3: Missing content id", NewError(MissingContentIDCode, 3, "").Error())
	assert.Equal(t, UnknownErrorMsg, ErrorMessage(ErrorCode(999)))
	assert.False(t, IsCode(errors.New("plain"), ForbiddenHeaderCode))
}
