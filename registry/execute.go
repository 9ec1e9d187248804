package registry

import (
	"context"
	"net/http"
	"strings"

	"github.com/kroksys/obatch/batch"
	"go.uber.org/zap"
)

// Execute runs a parsed batch and mirrors it into responses. Parts that failed
// to parse become a single 400 response. Change sets run in order and stop at
// the first failing member, which then stands for the whole change set.
func (reg *Registry) Execute(ctx context.Context, outcomes []batch.Outcome) batch.BatchResponse {
	result := make(batch.BatchResponse, 0, len(outcomes))
	for i, o := range outcomes {
		switch {
		case o.Err != nil:
			reg.log.Debug("body part rejected", zap.Int("part", i), zap.Error(o.Err))
			result = append(result, batch.ResponsePart{
				Responses: []*batch.Response{ErrorResponse(o.Err)},
			})
		case o.ChangeSet:
			result = append(result, reg.executeChangeSet(ctx, o.Requests))
		default:
			part := batch.ResponsePart{}
			for _, req := range o.Requests {
				part.Responses = append(part.Responses, reg.Call(ctx, req))
			}
			result = append(result, part)
		}
	}
	return result
}

func (reg *Registry) executeChangeSet(ctx context.Context, requests []*batch.Request) batch.ResponsePart {
	// Content-ID -> Location of entities created earlier in the change set.
	locations := make(map[string]string)
	part := batch.ResponsePart{ChangeSet: true}
	for i, req := range requests {
		var resp *batch.Response
		if err := resolveReference(req, locations); err != nil {
			closeBody(req)
			resp = ErrorResponse(err)
			if id := req.ContentID(); id != "" {
				resp.Header.Add(batch.HeaderContentID, id, 0)
			}
		} else {
			resp = reg.Call(ctx, req)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			for _, rest := range requests[i+1:] {
				closeBody(rest)
			}
			reg.log.Debug("change set failed",
				zap.String("content_id", req.ContentID()),
				zap.Int("status", resp.StatusCode))
			return batch.ResponsePart{Responses: []*batch.Response{resp}}
		}
		if loc, ok := resp.Header.Get(batch.HeaderLocation); ok && req.ContentID() != "" {
			locations[req.ContentID()] = loc
		}
		part.Responses = append(part.Responses, resp)
	}
	return part
}

// resolveReference rewrites a "$<Content-ID>" path prefix to the path of the
// entity created by that change set member.
func resolveReference(req *batch.Request, locations map[string]string) error {
	path := strings.TrimPrefix(req.RawODataPath, "/")
	if !strings.HasPrefix(path, "$") {
		return nil
	}
	id, rest, _ := strings.Cut(path[1:], "/")
	loc, ok := locations[id]
	if !ok {
		return NewStatusError(http.StatusBadRequest, "unresolved Content-ID reference $"+id)
	}
	target := strings.TrimPrefix(loc, req.RawBaseURI)
	if rest != "" {
		target += "/" + rest
	}
	req.SetODataPath(target)
	return nil
}

func closeBody(req *batch.Request) {
	if req.Body != nil {
		req.Body.Close()
	}
}
