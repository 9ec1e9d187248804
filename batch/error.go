package batch

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is a structural violation found while parsing a batch body.
// Every Error carries the 1-based line number of the offending line, or of the
// enclosing header block when something is missing.
type Error struct {

	// A Number that indicates the violation kind.
	Code ErrorCode `json:"code"`

	// A short description of the violation kind.
	Message ErrorMsg `json:"message"`

	// Line in the batch body where the violation was detected.
	Line int `json:"line"`

	// Additional information about the violation. This may be omitted.
	Detail string `json:"detail,omitempty"`
}

// Returns new Error object with provided ErrorCode, line and detail.
// Sets Error message using ErrorCode
func NewError(code ErrorCode, line int, detail string) *Error {
	return &Error{
		Code:    code,
		Message: ErrorMessage(code),
		Line:    line,
		Detail:  detail,
	}
}

func newErrorf(code ErrorCode, line int, format string, args ...interface{}) *Error {
	return NewError(code, line, fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("batch: line %d: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("batch: line %d: %s: %s", e.Line, e.Message, e.Detail)
}

// Reports whether err is, or wraps, a batch Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

type ErrorCode int

const (
	MissingContentTypeCode ErrorCode = iota + 1
	InvalidContentTypeCode
	MissingContentTransferEncodingCode
	InvalidContentTransferEncodingCode
	MissingContentLengthCode
	InvalidContentLengthCode
	MissingContentIDCode
	ForbiddenHeaderCode
	InvalidHeaderCode
	InvalidStatusLineCode
	InvalidMethodCode
	InvalidChangeSetMethodCode
	InvalidQueryOperationMethodCode
	InvalidHTTPVersionCode
	InvalidURICode
	MissingMandatoryHeaderCode
	InvalidContentCode
	MissingBoundaryDelimiterCode
	MissingCloseDelimiterCode
	InvalidBoundaryCode
	MissingBlankLineCode
	InvalidHostCode
)

type ErrorMsg string

const (
	MissingContentTypeMsg             ErrorMsg = "Missing content type"
	InvalidContentTypeMsg             ErrorMsg = "Invalid content type"
	MissingContentTransferEncodingMsg ErrorMsg = "Missing content transfer encoding"
	InvalidContentTransferEncodingMsg ErrorMsg = "Invalid content transfer encoding"
	MissingContentLengthMsg           ErrorMsg = "Missing content length"
	InvalidContentLengthMsg           ErrorMsg = "Invalid content length"
	MissingContentIDMsg               ErrorMsg = "Missing content id"
	ForbiddenHeaderMsg                ErrorMsg = "Forbidden header"
	InvalidHeaderMsg                  ErrorMsg = "Invalid header"
	InvalidStatusLineMsg              ErrorMsg = "Invalid status line"
	InvalidMethodMsg                  ErrorMsg = "Invalid method"
	InvalidChangeSetMethodMsg         ErrorMsg = "Invalid change set method"
	InvalidQueryOperationMethodMsg    ErrorMsg = "Invalid query operation method"
	InvalidHTTPVersionMsg             ErrorMsg = "Invalid HTTP version"
	InvalidURIMsg                     ErrorMsg = "Invalid URI"
	MissingMandatoryHeaderMsg         ErrorMsg = "Missing mandatory header"
	InvalidContentMsg                 ErrorMsg = "Invalid content"
	MissingBoundaryDelimiterMsg       ErrorMsg = "Missing boundary delimiter"
	MissingCloseDelimiterMsg          ErrorMsg = "Missing close delimiter"
	InvalidBoundaryMsg                ErrorMsg = "Invalid boundary"
	MissingBlankLineMsg               ErrorMsg = "Missing blank line"
	InvalidHostMsg                    ErrorMsg = "Invalid host"
	UnknownErrorMsg                   ErrorMsg = "Unknown error"
)

func ErrorMessage(code ErrorCode) ErrorMsg {
	switch code {
	case MissingContentTypeCode:
		return MissingContentTypeMsg
	case InvalidContentTypeCode:
		return InvalidContentTypeMsg
	case MissingContentTransferEncodingCode:
		return MissingContentTransferEncodingMsg
	case InvalidContentTransferEncodingCode:
		return InvalidContentTransferEncodingMsg
	case MissingContentLengthCode:
		return MissingContentLengthMsg
	case InvalidContentLengthCode:
		return InvalidContentLengthMsg
	case MissingContentIDCode:
		return MissingContentIDMsg
	case ForbiddenHeaderCode:
		return ForbiddenHeaderMsg
	case InvalidHeaderCode:
		return InvalidHeaderMsg
	case InvalidStatusLineCode:
		return InvalidStatusLineMsg
	case InvalidMethodCode:
		return InvalidMethodMsg
	case InvalidChangeSetMethodCode:
		return InvalidChangeSetMethodMsg
	case InvalidQueryOperationMethodCode:
		return InvalidQueryOperationMethodMsg
	case InvalidHTTPVersionCode:
		return InvalidHTTPVersionMsg
	case InvalidURICode:
		return InvalidURIMsg
	case MissingMandatoryHeaderCode:
		return MissingMandatoryHeaderMsg
	case InvalidContentCode:
		return InvalidContentMsg
	case MissingBoundaryDelimiterCode:
		return MissingBoundaryDelimiterMsg
	case MissingCloseDelimiterCode:
		return MissingCloseDelimiterMsg
	case InvalidBoundaryCode:
		return InvalidBoundaryMsg
	case MissingBlankLineCode:
		return MissingBlankLineMsg
	case InvalidHostCode:
		return InvalidHostMsg
	default:
		return UnknownErrorMsg
	}
}

// Diagnostic key of the code, i.e. "INVALID_STATUS_LINE".
func ErrorCodeString(code ErrorCode) string {
	switch code {
	case MissingContentTypeCode:
		return "MISSING_CONTENT_TYPE"
	case InvalidContentTypeCode:
		return "INVALID_CONTENT_TYPE"
	case MissingContentTransferEncodingCode:
		return "MISSING_CONTENT_TRANSFER_ENCODING"
	case InvalidContentTransferEncodingCode:
		return "INVALID_CONTENT_TRANSFER_ENCODING"
	case MissingContentLengthCode:
		return "MISSING_CONTENT_LENGTH"
	case InvalidContentLengthCode:
		return "INVALID_CONTENT_LENGTH"
	case MissingContentIDCode:
		return "MISSING_CONTENT_ID"
	case ForbiddenHeaderCode:
		return "FORBIDDEN_HEADER"
	case InvalidHeaderCode:
		return "INVALID_HEADER"
	case InvalidStatusLineCode:
		return "INVALID_STATUS_LINE"
	case InvalidMethodCode:
		return "INVALID_METHOD"
	case InvalidChangeSetMethodCode:
		return "INVALID_CHANGESET_METHOD"
	case InvalidQueryOperationMethodCode:
		return "INVALID_QUERY_OPERATION_METHOD"
	case InvalidHTTPVersionCode:
		return "INVALID_HTTP_VERSION"
	case InvalidURICode:
		return "INVALID_URI"
	case MissingMandatoryHeaderCode:
		return "MISSING_MANDATORY_HEADER"
	case InvalidContentCode:
		return "INVALID_CONTENT"
	case MissingBoundaryDelimiterCode:
		return "MISSING_BOUNDARY_DELIMITER"
	case MissingCloseDelimiterCode:
		return "MISSING_CLOSE_DELIMITER"
	case InvalidBoundaryCode:
		return "INVALID_BOUNDARY"
	case MissingBlankLineCode:
		return "MISSING_BLANK_LINE"
	case InvalidHostCode:
		return "INVALID_HOST"
	}
	return "UNKNOWN"
}
