package batch

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoundary = "batch_1"

// message joins lines with CRLF, terminating the last one too.
func message(lines ...string) string {
	return strings.Join(lines, crlf) + crlf
}

func transform(strict bool, text string) (*BodyPart, RequestPart, error) {
	part, err := ParseBodyPart(chunk(text), testBoundary, strict)
	if err != nil {
		return nil, RequestPart{}, err
	}
	rp, err := NewTransformer(testBaseURI, "").Transform(part)
	return part, rp, err
}

// chunk wraps text as a body part opened by a delimiter on line 0.
func chunk(text string) Chunk {
	return Chunk{Lines: ReadLines(text)}
}

func getPart(extra ...string) string {
	lines := []string{
		"Content-Type: application/http",
		"Content-Transfer-Encoding: binary",
		"",
		"GET Employees HTTP/1.1",
	}
	lines = append(lines, extra...)
	return message(lines...)
}

func changeSetPart(members ...[]string) string {
	lines := []string{
		"Content-Type: multipart/mixed; boundary=changeset_1",
		"",
	}
	for _, m := range members {
		lines = append(lines, "--changeset_1")
		lines = append(lines, m...)
	}
	lines = append(lines, "--changeset_1--")
	return message(lines...)
}

func member(contentID string, operation ...string) []string {
	lines := []string{
		"Content-Type: application/http",
		"Content-Transfer-Encoding: binary",
	}
	if contentID != "" {
		lines = append(lines, "Content-ID: "+contentID)
	}
	lines = append(lines, "")
	return append(lines, operation...)
}

func readBody(t *testing.T, r *Request) string {
	t.Helper()
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(data)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, IsCode(err, code), "expected %s, got %v", ErrorCodeString(code), err)
}

func TestTransformGet(t *testing.T) {
	_, rp, err := transform(false, getPart("Accept: application/json", "", ""))
	require.NoError(t, err)
	assert.False(t, rp.ChangeSet)
	require.Len(t, rp.Requests, 1)
	req := rp.Requests[0]
	assert.Equal(t, MethodGet, req.Method)
	assert.Equal(t, testBaseURI+"/Employees", req.RawRequestURI)
	assert.Equal(t, []string{"application/json"}, req.Header.Values("Accept"))
	assert.Equal(t, "", readBody(t, req))
}

func TestTransformGetBody(t *testing.T) {
	_, _, err := transform(false, getPart("", ""))
	assert.NoError(t, err)

	_, _, err = transform(false, getPart("", "first", "second"))
	requireCode(t, err, InvalidContentCode)
	assert.Equal(t, 4, err.(*Error).Line)

	_, _, err = transform(false, getPart("", "content"))
	requireCode(t, err, InvalidContentCode)
}

func TestTransformForbiddenHeader(t *testing.T) {
	for _, name := range []string{"Authorization", "Expect", "From", "Max-Forwards", "Range", "TE"} {
		_, _, err := transform(false, getPart(name+": x", ""))
		requireCode(t, err, ForbiddenHeaderCode)
		assert.Equal(t, 5, err.(*Error).Line, name)
	}
	_, _, err := transform(false, getPart("X-Trace: x", ""))
	assert.NoError(t, err)
}

func TestTransformBodyPartHeader(t *testing.T) {
	tests := []struct {
		name string
		text string
		code ErrorCode
		line int
	}{
		{"missing content type", message("Content-Transfer-Encoding: binary", "", "GET Employees HTTP/1.1", ""), MissingContentTypeCode, 1},
		{"wrong content type", message("Content-Type: text/plain", "Content-Transfer-Encoding: binary", "", "GET Employees HTTP/1.1", ""), InvalidContentTypeCode, 1},
		{"missing transfer encoding", message("Content-Type: application/http", "", "GET Employees HTTP/1.1", ""), MissingContentTransferEncodingCode, 1},
		{"wrong transfer encoding", message("Content-Type: application/http", "Content-Transfer-Encoding: base64", "", "GET Employees HTTP/1.1", ""), InvalidContentTransferEncodingCode, 2},
		{"two transfer encodings", message("Content-Type: application/http", "Content-Transfer-Encoding: binary, base64", "", "GET Employees HTTP/1.1", ""), InvalidHeaderCode, 2},
		{"repeated transfer encoding", message("Content-Type: application/http", "Content-Transfer-Encoding: binary", "Content-Transfer-Encoding: binary", "", "GET Employees HTTP/1.1", ""), InvalidHeaderCode, 2},
		{"top level POST", message("Content-Type: application/http", "Content-Transfer-Encoding: binary", "", "POST Employees HTTP/1.1", ""), InvalidQueryOperationMethodCode, 4},
		{"missing request line", message("Content-Type: application/http", "Content-Transfer-Encoding: binary", "", ""), InvalidStatusLineCode, 4},
		{"request line cut off", message("Content-Type: application/http", "Content-Transfer-Encoding: binary", ""), InvalidStatusLineCode, 3},
		{"headers only", message("Content-Type: application/http", "Content-Transfer-Encoding: binary"), InvalidStatusLineCode, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := transform(false, tt.text)
			requireCode(t, err, tt.code)
			assert.Equal(t, tt.line, err.(*Error).Line)
		})
	}
}

func TestTransformTransferEncodingIsCaseInsensitive(t *testing.T) {
	_, _, err := transform(false, message("Content-Type: application/http", "Content-Transfer-Encoding: BINARY", "", "GET Employees HTTP/1.1", ""))
	assert.NoError(t, err)
}

func TestTransformChangeSetContentIDMemberWins(t *testing.T) {
	part, rp, err := transform(false, changeSetPart(
		member("1",
			"POST Employees HTTP/1.1",
			"Content-ID: 2",
			"Content-Type: application/json",
			"",
			`{"Name":"Walter"}`),
	))
	require.NoError(t, err)
	assert.True(t, rp.ChangeSet)
	require.Len(t, rp.Requests, 1)
	req := rp.Requests[0]
	assert.Equal(t, MethodPost, req.Method)
	assert.Equal(t, "1", req.ContentID())
	assert.Equal(t, `{"Name":"Walter"}`, readBody(t, req))

	cs := part.Content.(*ChangeSet)
	v, _ := cs.Members[0].Operation.Header.Get(HeaderContentID)
	assert.Equal(t, "2", v)
}

func TestTransformChangeSetContentIDFromOperation(t *testing.T) {
	_, rp, err := transform(false, changeSetPart(
		member("",
			"DELETE Employees(1) HTTP/1.1",
			"Content-ID: 2",
			""),
	))
	require.NoError(t, err)
	assert.Equal(t, "2", rp.Requests[0].ContentID())
}

func TestTransformChangeSetMissingContentID(t *testing.T) {
	_, _, err := transform(false, changeSetPart(
		member("", "DELETE Employees(1) HTTP/1.1", ""),
	))
	requireCode(t, err, MissingContentIDCode)
}

func TestTransformChangeSetMemberHeader(t *testing.T) {
	_, _, err := transform(false, changeSetPart(
		[]string{"Content-Type: application/http", "Content-ID: 1", "", "DELETE Employees(1) HTTP/1.1", ""},
	))
	requireCode(t, err, MissingContentTransferEncodingCode)

	_, _, err = transform(false, changeSetPart(
		[]string{"Content-Type: application/json", "Content-Transfer-Encoding: binary", "Content-ID: 1", "", "DELETE Employees(1) HTTP/1.1", ""},
	))
	requireCode(t, err, InvalidContentTypeCode)
}

func TestTransformChangeSetGetIsRejected(t *testing.T) {
	_, _, err := transform(false, changeSetPart(
		member("1", "GET Employees HTTP/1.1", ""),
	))
	requireCode(t, err, InvalidChangeSetMethodCode)
}

func TestTransformContentLength(t *testing.T) {
	tests := []struct {
		name   string
		length string
		body   string
		code   ErrorCode
	}{
		{"shorter than body", "5", "abcde", 0},
		{"zero", "0", "", 0},
		{"longer than body", "100", "abcdefgh", 0},
		{"negative", "-1", "", InvalidContentLengthCode},
		{"not a number", "abc", "", InvalidHeaderCode},
		{"overflow", "99999999999", "", InvalidHeaderCode},
		{"two values", "3, 4", "", InvalidHeaderCode},
		{"repeated value", "3, 3", "", InvalidHeaderCode},
		{"empty", "", "", MissingContentLengthCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, rp, err := transform(false, changeSetPart(
				member("1",
					"PUT Employees(1) HTTP/1.1",
					"Content-Length: "+tt.length,
					"",
					"abcdefgh"),
			))
			if tt.code != 0 {
				requireCode(t, err, tt.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.body, readBody(t, rp.Requests[0]))
		})
	}
}

func TestTransformRepeatedContentLengthLine(t *testing.T) {
	_, _, err := transform(false, changeSetPart(
		member("1",
			"PUT Employees(1) HTTP/1.1",
			"Content-Length: 3",
			"Content-Length: 3",
			"",
			"abc"),
	))
	requireCode(t, err, InvalidHeaderCode)
	assert.Equal(t, 9, err.(*Error).Line)
}

func TestTransformHost(t *testing.T) {
	_, rp, err := transform(false, getPart("Host: svc.example.org", ""))
	require.NoError(t, err)
	assert.Equal(t, testBaseURI+"/Employees", rp.Requests[0].RawRequestURI)

	text := message("Content-Type: application/http", "Content-Transfer-Encoding: binary", "", "GET /Employees HTTP/1.1", "Host: other.example.org", "")
	_, _, err = transform(false, text)
	requireCode(t, err, InvalidHostCode)
}

func TestParseBodyPartNestedChangeSet(t *testing.T) {
	text := message(
		"Content-Type: multipart/mixed; boundary=changeset_1",
		"",
		"--changeset_1",
		"Content-Type: multipart/mixed; boundary=changeset_2",
		"",
		"--changeset_2",
		"--changeset_2--",
		"--changeset_1--",
	)
	_, err := ParseBodyPart(chunk(text), testBoundary, false)
	requireCode(t, err, InvalidContentTypeCode)
	assert.Equal(t, 4, err.(*Error).Line)
}

func TestParseBodyPartChangeSetBoundaryMustDiffer(t *testing.T) {
	text := message(
		"Content-Type: multipart/mixed; boundary="+testBoundary,
		"",
		"--"+testBoundary+"--",
	)
	_, err := ParseBodyPart(chunk(text), testBoundary, false)
	requireCode(t, err, InvalidBoundaryCode)
}

func TestParseBodyPartStrictBlankLine(t *testing.T) {
	text := message(
		"Content-Type: application/http",
		"Content-Transfer-Encoding: binary",
		"GET Employees HTTP/1.1",
		"",
	)
	_, err := ParseBodyPart(chunk(text), testBoundary, true)
	requireCode(t, err, MissingBlankLineCode)
	assert.Equal(t, 3, err.(*Error).Line)

	_, _, err = transform(false, text)
	assert.NoError(t, err)
}

func TestParseBodyPartStrictBlankLineAfterRequestLine(t *testing.T) {
	_, err := ParseBodyPart(chunk(getPart()), testBoundary, true)
	requireCode(t, err, MissingBlankLineCode)
	assert.Equal(t, 4, err.(*Error).Line)
}

func TestParseBodyPartEmptyChangeSet(t *testing.T) {
	text := message(
		"Content-Type: multipart/mixed; boundary=changeset_1",
		"",
	)
	_, err := ParseBodyPart(chunk(text), testBoundary, false)
	requireCode(t, err, MissingCloseDelimiterCode)
	assert.Equal(t, 2, err.(*Error).Line)

	_, err = ParseBodyPart(Chunk{Delimiter: 7}, testBoundary, false)
	requireCode(t, err, MissingContentTypeCode)
	assert.Equal(t, 7, err.(*Error).Line)
}

func TestParseBodyPartVariant(t *testing.T) {
	part, err := ParseBodyPart(chunk(getPart("", "")), testBoundary, false)
	require.NoError(t, err)
	assert.False(t, part.IsChangeSet())
	op, ok := part.Content.(*QueryOperation)
	require.True(t, ok)
	assert.Equal(t, 4, op.StatusLine.Number)
}
