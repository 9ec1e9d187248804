package registry

import (
	"net/url"
	"strings"
)

// Resource is the addressed part of an OData path such as
// "/Employees('1')/Manager".
type Resource struct {
	EntitySet string

	// Key predicate without parentheses and quotes. Empty for collections.
	Key string

	// Whatever follows the entity, i.e. "Manager".
	Navigation string
}

func ParseResource(path string) (Resource, error) {
	path = strings.TrimPrefix(path, "/")
	head, nav, _ := strings.Cut(path, "/")
	res := Resource{EntitySet: head, Navigation: nav}
	if i := strings.IndexByte(head, '('); i >= 0 {
		if !strings.HasSuffix(head, ")") {
			return Resource{}, NewStatusError(400, "malformed key predicate in "+head)
		}
		key, err := url.PathUnescape(strings.Trim(head[i+1:len(head)-1], "'"))
		if err != nil {
			return Resource{}, NewStatusError(400, "malformed key predicate in "+head)
		}
		res.EntitySet = head[:i]
		res.Key = key
	}
	if res.EntitySet == "" {
		return Resource{}, NewStatusError(400, "missing entity set in "+path)
	}
	return res, nil
}

// Entity is implemented by processor results that can be addressed by key.
// Created entities get a Location header built from it.
type Entity interface {
	EntityKey() string
}

func entityLocation(baseURI, entitySet string, e Entity) string {
	return baseURI + "/" + entitySet + "(" + e.EntityKey() + ")"
}
