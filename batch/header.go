package batch

import (
	"regexp"
	"strings"
)

const (
	HeaderContentType             = "Content-Type"
	HeaderContentTransferEncoding = "Content-Transfer-Encoding"
	HeaderContentID               = "Content-ID"
	HeaderContentLength           = "Content-Length"
	HeaderHost                    = "Host"
	HeaderLocation                = "Location"
)

// HeaderField is one header name with all of its values. Name keeps the casing
// of the first occurrence, Line its line number.
type HeaderField struct {
	Name   string
	Values []string
	Line   int

	// values added, duplicates included
	count int
}

// Returns all values joined with ", ".
func (f *HeaderField) Value() string {
	return strings.Join(f.Values, ", ")
}

func (f *HeaderField) clone() *HeaderField {
	values := make([]string, len(f.Values))
	copy(values, f.Values)
	return &HeaderField{Name: f.Name, Values: values, Line: f.Line, count: f.count}
}

// Returns how many values were added to the field, counting repeated values
// that Values keeps only once.
func (f *HeaderField) Occurrences() int {
	if f.count < len(f.Values) {
		return len(f.Values)
	}
	return f.count
}

func (f *HeaderField) addValue(value string) {
	f.count++
	for _, v := range f.Values {
		if v == value {
			return
		}
	}
	f.Values = append(f.Values, value)
}

// Header is an ordered, case-insensitive multi-map of header fields.
// Enumeration order is the order in which names were first added.
type Header struct {
	fields map[string]*HeaderField
	order  []string
	line   int
}

// Returns new empty Header whose block starts at line.
func NewHeader(line int) *Header {
	return &Header{
		fields: make(map[string]*HeaderField),
		line:   line,
	}
}

// Line of the first line of the header block, used when a header is missing.
func (h *Header) Line() int {
	return h.line
}

// Adds value to the named field. A value already present is not added twice.
func (h *Header) Add(name, value string, line int) {
	h.fieldOrDefault(name, line).addValue(value)
}

// Adds every value to the named field, skipping values already present.
func (h *Header) AddValues(name string, values []string, line int) {
	field := h.fieldOrDefault(name, line)
	for _, v := range values {
		field.addValue(v)
	}
}

// Returns the values of the named header joined with ", ".
func (h *Header) Get(name string) (string, bool) {
	field := h.Field(name)
	if field == nil {
		return "", false
	}
	return field.Value(), true
}

// Returns the ordered values of the named header, nil if absent.
func (h *Header) Values(name string) []string {
	field := h.Field(name)
	if field == nil {
		return nil
	}
	return field.Values
}

func (h *Header) Field(name string) *HeaderField {
	return h.fields[strings.ToLower(name)]
}

func (h *Header) Exists(name string) bool {
	return h.Field(name) != nil
}

// Reports whether the combined value of the named header matches re.
// An absent header never matches.
func (h *Header) IsMatching(name string, re *regexp.Regexp) bool {
	value, ok := h.Get(name)
	if !ok {
		return false
	}
	return re.MatchString(value)
}

func (h *Header) Remove(name string) {
	key := strings.ToLower(name)
	if _, ok := h.fields[key]; !ok {
		return
	}
	delete(h.fields, key)
	for i, k := range h.order {
		if k == key {
			h.order = append(h.order[:i:i], h.order[i+1:]...)
			break
		}
	}
}

// Replaces the field with the same name by a copy of field. A new name is
// appended to the end of the enumeration order.
func (h *Header) Replace(field *HeaderField) {
	key := strings.ToLower(field.Name)
	if _, ok := h.fields[key]; !ok {
		h.order = append(h.order, key)
	}
	h.fields[key] = field.clone()
}

// Returns the fields in first-seen order.
func (h *Header) Fields() []*HeaderField {
	fields := make([]*HeaderField, 0, len(h.order))
	for _, k := range h.order {
		fields = append(fields, h.fields[k])
	}
	return fields
}

func (h *Header) Len() int {
	return len(h.order)
}

// Returns a deep copy; changes to the copy never reach h.
func (h *Header) Clone() *Header {
	c := &Header{
		fields: make(map[string]*HeaderField, len(h.fields)),
		order:  make([]string, len(h.order)),
		line:   h.line,
	}
	copy(c.order, h.order)
	for k, f := range h.fields {
		c.fields[k] = f.clone()
	}
	return c
}

// Maps original header names to their combined values.
func (h *Header) ToSingleMap() map[string]string {
	m := make(map[string]string, len(h.order))
	for _, f := range h.Fields() {
		m[f.Name] = f.Value()
	}
	return m
}

// Maps original header names to copies of their value lists.
func (h *Header) ToMultiMap() map[string][]string {
	m := make(map[string][]string, len(h.order))
	for _, f := range h.Fields() {
		m[f.Name] = f.clone().Values
	}
	return m
}

func (h *Header) fieldOrDefault(name string, line int) *HeaderField {
	key := strings.ToLower(name)
	field, ok := h.fields[key]
	if !ok {
		field = &HeaderField{Name: name, Line: line}
		h.fields[key] = field
		h.order = append(h.order, key)
	}
	return field
}

// SplitValuesByComma breaks a composite header value such as
// "en-US,en;q=0.7" into its trimmed tokens. Empty tokens are dropped; a value
// without any token yields the single trimmed value.
func SplitValuesByComma(value string) []string {
	parts := strings.Split(value, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	if len(values) == 0 {
		return []string{strings.TrimSpace(value)}
	}
	return values
}
