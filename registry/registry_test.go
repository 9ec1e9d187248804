package registry

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/kroksys/obatch/batch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURI = "http://svc.example.org/service.svc"

type employee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func (e *employee) EntityKey() string {
	return e.ID
}

type employees struct {
	mu   sync.Mutex
	data map[string]*employee
	next int
}

func newEmployees() *employees {
	return &employees{data: map[string]*employee{
		"7": {ID: "7", Name: "Jesse", Age: 25},
	}}
}

func (p *employees) Get(res Resource) (interface{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if res.Key == "" {
		return len(p.data), nil
	}
	e, ok := p.data[res.Key]
	if !ok {
		return nil, NewStatusError(http.StatusNotFound, "employee not found")
	}
	return e, nil
}

func (p *employees) Post(ctx context.Context, e employee) (*employee, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	e.ID = strconv.Itoa(p.next)
	p.data[e.ID] = &e
	return &e, nil
}

func (p *employees) Patch(res Resource, changes map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.data[res.Key]
	if !ok {
		return NewStatusError(http.StatusNotFound, "employee not found")
	}
	if name, ok := changes["name"].(string); ok {
		e.Name = name
	}
	return nil
}

func (p *employees) Delete(res Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.data[res.Key]; !ok {
		return NewStatusError(http.StatusNotFound, "employee not found")
	}
	delete(p.data, res.Key)
	return nil
}

func (p *employees) Put(req *batch.Request) {
	panic("not implemented")
}

func (p *employees) Helper() string {
	return "not exposed"
}

func newTestRegistry(t *testing.T) (*Registry, *employees) {
	t.Helper()
	reg := NewRegistry(nil)
	p := newEmployees()
	require.NoError(t, reg.Register("Employees", p))
	return reg, p
}

func request(m batch.Method, path, contentID, body string) *batch.Request {
	h := batch.NewHeader(0)
	if contentID != "" {
		h.Add(batch.HeaderContentID, contentID, 0)
	}
	r := &batch.Request{
		Method:     m,
		RawBaseURI: testBaseURI,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	r.SetODataPath(path)
	return r
}

func TestRegister(t *testing.T) {
	reg, _ := newTestRegistry(t)
	assert.Error(t, reg.Register("Employees", newEmployees()))
	assert.Error(t, reg.Register("Nothing", struct{}{}))

	assert.NotNil(t, reg.FindMethod("Employees", batch.MethodGet))
	assert.NotNil(t, reg.FindMethod("Employees", batch.MethodPut))
	assert.Nil(t, reg.FindMethod("Employees", batch.MethodMerge))
	assert.Nil(t, reg.FindMethod("Departments", batch.MethodGet))
}

func TestCallGet(t *testing.T) {
	reg, _ := newTestRegistry(t)
	resp := reg.Call(context.Background(), request(batch.MethodGet, "/Employees('7')", "", ""))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	ct, _ := resp.Header.Get(batch.HeaderContentType)
	assert.Equal(t, "application/json", ct)
	assert.JSONEq(t, `{"id":"7","name":"Jesse","age":25}`, string(resp.Body))
}

func TestCallErrors(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tests := []struct {
		name   string
		req    *batch.Request
		status int
		code   string
	}{
		{"unknown entity set", request(batch.MethodGet, "/Departments", "", ""), http.StatusNotFound, "NOT_FOUND"},
		{"unknown key", request(batch.MethodGet, "/Employees(99)", "", ""), http.StatusNotFound, "NOT_FOUND"},
		{"unsupported method", request(batch.MethodMerge, "/Employees(7)", "", ""), http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"},
		{"malformed key", request(batch.MethodGet, "/Employees(7", "", ""), http.StatusBadRequest, "BAD_REQUEST"},
		{"invalid body", request(batch.MethodPost, "/Employees", "", "{"), http.StatusBadRequest, "BAD_REQUEST"},
		{"processor panics", request(batch.MethodPut, "/Employees(7)", "", ""), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := reg.Call(context.Background(), tt.req)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, string(resp.Body), `"code":"`+tt.code+`"`)
		})
	}
}

func TestCallPost(t *testing.T) {
	reg, p := newTestRegistry(t)
	resp := reg.Call(context.Background(), request(batch.MethodPost, "/Employees", "1", `{"name":"Walter","age":"52"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	loc, _ := resp.Header.Get(batch.HeaderLocation)
	assert.Equal(t, testBaseURI+"/Employees(1)", loc)
	assert.Equal(t, "1", resp.ContentID())
	assert.Equal(t, 52, p.data["1"].Age)
}

func TestCallCancelledContext(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp := reg.Call(ctx, request(batch.MethodGet, "/Employees", "", ""))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestExecuteChangeSetReferences(t *testing.T) {
	reg, p := newTestRegistry(t)
	out := reg.Execute(context.Background(), []batch.Outcome{
		{RequestPart: batch.RequestPart{ChangeSet: true, Requests: []*batch.Request{
			request(batch.MethodPost, "/Employees", "1", `{"name":"Walter"}`),
			request(batch.MethodPatch, "/$1", "2", `{"name":"Heisenberg"}`),
		}}},
		{RequestPart: batch.RequestPart{Requests: []*batch.Request{
			request(batch.MethodGet, "/Employees", "", ""),
		}}},
	})
	require.Len(t, out, 2)

	assert.True(t, out[0].ChangeSet)
	require.Len(t, out[0].Responses, 2)
	assert.Equal(t, http.StatusCreated, out[0].Responses[0].StatusCode)
	assert.Equal(t, http.StatusNoContent, out[0].Responses[1].StatusCode)
	assert.Equal(t, "2", out[0].Responses[1].ContentID())
	assert.Equal(t, "Heisenberg", p.data["1"].Name)

	assert.False(t, out[1].ChangeSet)
	assert.Equal(t, "2", string(out[1].Responses[0].Body))
}

func TestExecuteChangeSetFailureCollapses(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := reg.Execute(context.Background(), []batch.Outcome{
		{RequestPart: batch.RequestPart{ChangeSet: true, Requests: []*batch.Request{
			request(batch.MethodPost, "/Employees", "1", `{"name":"Walter"}`),
			request(batch.MethodDelete, "/Employees(99)", "2", ""),
			request(batch.MethodDelete, "/Employees(7)", "3", ""),
		}}},
	})
	require.Len(t, out, 1)
	assert.False(t, out[0].ChangeSet)
	require.Len(t, out[0].Responses, 1)
	assert.Equal(t, http.StatusNotFound, out[0].Responses[0].StatusCode)
	assert.Equal(t, "2", out[0].Responses[0].ContentID())
}

func TestExecuteUnresolvedReference(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := reg.Execute(context.Background(), []batch.Outcome{
		{RequestPart: batch.RequestPart{ChangeSet: true, Requests: []*batch.Request{
			request(batch.MethodPatch, "/$9/Manager", "1", `{}`),
		}}},
	})
	require.Len(t, out[0].Responses, 1)
	assert.Equal(t, http.StatusBadRequest, out[0].Responses[0].StatusCode)
	assert.Equal(t, "1", out[0].Responses[0].ContentID())
}

func TestExecuteRejectedPart(t *testing.T) {
	reg, _ := newTestRegistry(t)
	out := reg.Execute(context.Background(), []batch.Outcome{
		{Err: batch.NewError(batch.ForbiddenHeaderCode, 12, "Authorization")},
	})
	require.Len(t, out, 1)
	resp := out[0].Responses[0]
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":{"code":"FORBIDDEN_HEADER","message":"Forbidden header: Authorization","target":"line 12"}}`, string(resp.Body))
}

func TestParseResource(t *testing.T) {
	tests := []struct {
		path string
		want Resource
	}{
		{"/Employees", Resource{EntitySet: "Employees"}},
		{"/Employees('7')", Resource{EntitySet: "Employees", Key: "7"}},
		{"/Employees(7)/Manager/Name", Resource{EntitySet: "Employees", Key: "7", Navigation: "Manager/Name"}},
		{"Employees('a%20b')", Resource{EntitySet: "Employees", Key: "a b"}},
	}
	for _, tt := range tests {
		got, err := ParseResource(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseResource("/")
	assert.Error(t, err)
	_, err = ParseResource("/(1)")
	assert.Error(t, err)
}
