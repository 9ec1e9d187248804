package registry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kroksys/obatch/batch"
	"github.com/pkg/errors"
)

// StatusError lets a processor choose the HTTP status of its failure.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

// Returns new StatusError. Code defaults to the upper-cased status text,
// i.e. "NOT_FOUND".
func NewStatusError(status int, message string) *StatusError {
	return &StatusError{
		Status:  status,
		Code:    strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_")),
		Message: message,
	}
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

type odataError struct {
	Error odataErrorBody `json:"error"`
}

type odataErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

// ErrorResponse converts err into a response with an OData JSON error body.
// Batch violations become 400, StatusErrors keep their status and anything
// else is a 500.
func ErrorResponse(err error) *batch.Response {
	body := odataErrorBody{Code: "INTERNAL_ERROR", Message: err.Error()}
	status := http.StatusInternalServerError

	var batchErr *batch.Error
	var statusErr *StatusError
	switch {
	case errors.As(err, &batchErr):
		status = http.StatusBadRequest
		body.Code = batch.ErrorCodeString(batchErr.Code)
		body.Message = string(batchErr.Message)
		if batchErr.Detail != "" {
			body.Message += ": " + batchErr.Detail
		}
		body.Target = fmt.Sprintf("line %d", batchErr.Line)
	case errors.As(err, &statusErr):
		status = statusErr.Status
		body.Code = statusErr.Code
		body.Message = statusErr.Message
	}

	resp := batch.NewResponse(status)
	resp.Header.Add(batch.HeaderContentType, "application/json", 0)
	resp.Body, _ = json.Marshal(odataError{Error: body})
	return resp
}
