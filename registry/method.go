package registry

import (
	"bytes"
	"context"
	"io"
	"reflect"
	"runtime"

	jsoniter "github.com/json-iterator/go"
	"github.com/kroksys/obatch/batch"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type argKind int

const (
	argRequest argKind = iota
	argResource
	argBody
)

// Method is an exported processor method bound to its receiver. Its name is
// the HTTP method it serves.
type Method struct {
	receiver reflect.Value
	fn       reflect.Value
	args     []reflect.Type
	kinds    []argKind
	errPos   int
	hasCtx   bool
	hasValue bool
	log      *zap.Logger
}

// Builds the call arguments for req. The body argument, if any, is decoded
// from the JSON request body.
func (m *Method) ParseArgs(req *batch.Request, res Resource) ([]reflect.Value, error) {
	result := make([]reflect.Value, 0, len(m.args))
	for i, kind := range m.kinds {
		switch kind {
		case argRequest:
			result = append(result, reflect.ValueOf(req))
		case argResource:
			result = append(result, reflect.ValueOf(res))
		case argBody:
			v, err := decodeBody(req.Body, m.args[i])
			if err != nil {
				return nil, err
			}
			result = append(result, v)
		}
	}
	return result, nil
}

func (m *Method) Call(ctx context.Context, args []reflect.Value) (res interface{}, errRes error) {
	callArgs := []reflect.Value{m.receiver}
	if m.hasCtx {
		callArgs = append(callArgs, reflect.ValueOf(ctx))
	}
	callArgs = append(callArgs, args...)

	// Catch panic
	defer func() {
		if err := recover(); err != nil {
			const size = 64 << 10
			buf := make([]byte, size)
			buf = buf[:runtime.Stack(buf, false)]
			m.log.Error("processor crashed",
				zap.Any("panic", err),
				zap.ByteString("stack", buf))
			errRes = errors.New("method handler crashed")
		}
	}()

	// Run the callback.
	outputs := m.fn.Call(callArgs)
	if len(outputs) == 0 {
		return nil, nil
	}

	// Get error if exists
	if m.errPos >= 0 && !outputs[m.errPos].IsNil() {
		return nil, outputs[m.errPos].Interface().(error)
	}

	if !m.hasValue || isNil(outputs[0]) {
		return nil, nil
	}
	return outputs[0].Interface(), nil
}

// decodeBody decodes JSON into a generic value first and maps it onto t, so
// processors can use json tags with loosely typed clients.
func decodeBody(body io.Reader, t reflect.Type) (reflect.Value, error) {
	ptr := reflect.New(t)
	if body == nil {
		return ptr.Elem(), nil
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return reflect.Value{}, errors.Wrap(err, "reading request body")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return ptr.Elem(), nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return reflect.Value{}, NewStatusError(400, "request body is not valid JSON: "+err.Error())
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           ptr.Interface(),
	})
	if err != nil {
		return reflect.Value{}, errors.Wrap(err, "creating body decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return reflect.Value{}, NewStatusError(400, "request body does not match "+t.String()+": "+err.Error())
	}
	return ptr.Elem(), nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
