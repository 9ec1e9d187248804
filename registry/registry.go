package registry

import (
	"context"
	"net/http"
	"reflect"
	"strings"

	"github.com/kroksys/obatch/batch"
	"github.com/kroksys/pool"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	contextType  = reflect.TypeOf((*context.Context)(nil)).Elem()
	requestType  = reflect.TypeOf((*batch.Request)(nil))
	resourceType = reflect.TypeOf(Resource{})
)

// Registry dispatches synthesized batch requests to processors registered
// per entity set.
type Registry struct {
	services *pool.PoolStr[*Service]
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		services: pool.NewPoolStr[*Service](),
		log:      log,
	}
}

// Register exposes the processor methods named after HTTP methods (Get, Post,
// Put, Patch, Merge, Delete) for the entity set name. A method may take, in
// order, a context.Context, then any of *batch.Request, Resource and a single
// body argument decoded from JSON. It may return a value, an error or both.
func (reg *Registry) Register(name string, processor interface{}) error {
	methods := reg.extractMethods(reflect.ValueOf(processor))
	if len(methods) == 0 {
		return errors.Errorf("processor %T doesn't have methods to expose", processor)
	}
	if _, ok := reg.services.GetOk(name); ok {
		return errors.Errorf("entity set %s is already registered", name)
	}
	reg.services.Put(name, &Service{
		Name:    name,
		methods: methods,
	})
	reg.log.Debug("processor registered",
		zap.String("entity_set", name),
		zap.Int("methods", len(methods)))
	return nil
}

func (reg *Registry) FindMethod(entitySet string, m batch.Method) *Method {
	s, ok := reg.services.GetOk(entitySet)
	if !ok {
		return nil
	}
	return s.methods[m]
}

// Call executes one request and always produces a response. The request body
// is consumed and closed.
func (reg *Registry) Call(ctx context.Context, req *batch.Request) *batch.Response {
	if req.Body != nil {
		defer req.Body.Close()
	}
	resp := reg.call(ctx, req)
	if id := req.ContentID(); id != "" {
		resp.Header.Add(batch.HeaderContentID, id, 0)
	}
	reg.log.Debug("request executed",
		zap.Stringer("method", req.Method),
		zap.String("uri", req.RawRequestURI),
		zap.Int("status", resp.StatusCode))
	return resp
}

func (reg *Registry) call(ctx context.Context, req *batch.Request) *batch.Response {
	if err := ctx.Err(); err != nil {
		return ErrorResponse(NewStatusError(http.StatusServiceUnavailable, err.Error()))
	}
	res, err := ParseResource(req.RawODataPath)
	if err != nil {
		return ErrorResponse(err)
	}
	s, ok := reg.services.GetOk(res.EntitySet)
	if !ok {
		return ErrorResponse(NewStatusError(http.StatusNotFound, "unknown entity set "+res.EntitySet))
	}
	if !s.Allows(req.Method) {
		return ErrorResponse(NewStatusError(http.StatusMethodNotAllowed,
			req.Method.String()+" is not supported by "+res.EntitySet))
	}
	method := s.methods[req.Method]
	args, err := method.ParseArgs(req, res)
	if err != nil {
		return ErrorResponse(err)
	}
	value, err := method.Call(ctx, args)
	if err != nil {
		return ErrorResponse(err)
	}
	return reg.successResponse(req, res, value)
}

func (reg *Registry) successResponse(req *batch.Request, res Resource, value interface{}) *batch.Response {
	status := http.StatusOK
	switch {
	case req.Method == batch.MethodPost:
		status = http.StatusCreated
	case value == nil:
		status = http.StatusNoContent
	}
	resp := batch.NewResponse(status)
	if req.Method == batch.MethodPost {
		if e, ok := value.(Entity); ok {
			resp.Header.Add(batch.HeaderLocation, entityLocation(req.RawBaseURI, res.EntitySet, e), 0)
		}
	}
	if value == nil {
		return resp
	}
	body, err := json.Marshal(value)
	if err != nil {
		reg.log.Error("encoding processor result",
			zap.String("uri", req.RawRequestURI),
			zap.Error(err))
		return ErrorResponse(errors.Wrap(err, "encoding result"))
	}
	resp.Header.Add(batch.HeaderContentType, "application/json", 0)
	resp.Body = body
	return resp
}

func (reg *Registry) extractMethods(theStruct reflect.Value) map[batch.Method]*Method {
	methods := make(map[batch.Method]*Method)
	structType := theStruct.Type()
	for i := 0; i < structType.NumMethod(); i++ {
		m := structType.Method(i)
		if m.PkgPath != "" { // not exported
			continue
		}
		httpMethod, ok := batch.ParseMethod(strings.ToUpper(m.Name))
		if !ok {
			continue
		}
		fntype := m.Func.Type()
		// Arguments
		args := []reflect.Type{}
		kinds := []argKind{}
		hasCtx := false
		hasBody := false
		valid := true
		for j := 1; j < fntype.NumIn(); j++ {
			in := fntype.In(j)
			switch {
			case j == 1 && in == contextType:
				hasCtx = true
				continue
			case in == requestType:
				kinds = append(kinds, argRequest)
			case in == resourceType:
				kinds = append(kinds, argResource)
			case !hasBody:
				hasBody = true
				kinds = append(kinds, argBody)
			default:
				valid = false
			}
			args = append(args, in)
		}
		if !valid {
			reg.log.Warn("skipping processor method with more than one body argument",
				zap.String("method", m.Name))
			continue
		}
		// Returns
		numOut := fntype.NumOut()
		errPos := -1
		if numOut > 2 {
			continue
		}
		if numOut == 2 {
			if !reg.isErrorType(fntype.Out(1)) {
				continue
			}
			errPos = 1
		}
		if numOut == 1 {
			if reg.isErrorType(fntype.Out(0)) {
				errPos = 0
			}
		}
		methods[httpMethod] = &Method{
			receiver: theStruct,
			fn:       m.Func,
			args:     args,
			kinds:    kinds,
			errPos:   errPos,
			hasCtx:   hasCtx,
			hasValue: numOut == 2 || (numOut == 1 && errPos < 0),
			log:      reg.log,
		}
	}
	return methods
}

func (*Registry) isErrorType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Implements(errorType)
}
