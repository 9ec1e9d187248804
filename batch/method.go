package batch

// Method is an HTTP method allowed inside a batch.
type Method int

const (
	MethodNone Method = iota
	MethodGet
	MethodPost
	MethodPut
	MethodPatch
	MethodMerge
	MethodDelete
)

func (m Method) String() string {
	return MethodString(m)
}

func MethodString(m Method) string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodPatch:
		return "PATCH"
	case MethodMerge:
		return "MERGE"
	case MethodDelete:
		return "DELETE"
	}
	return "NONE"
}

// Parses a method token. Method names are case-sensitive.
func ParseMethod(s string) (Method, bool) {
	switch s {
	case "GET":
		return MethodGet, true
	case "POST":
		return MethodPost, true
	case "PUT":
		return MethodPut, true
	case "PATCH":
		return MethodPatch, true
	case "MERGE":
		return MethodMerge, true
	case "DELETE":
		return MethodDelete, true
	}
	return MethodNone, false
}

// Reports whether the method may appear inside a change set.
func (m Method) IsChangeSetMethod() bool {
	switch m {
	case MethodPost, MethodPut, MethodDelete, MethodMerge, MethodPatch:
		return true
	}
	return false
}
