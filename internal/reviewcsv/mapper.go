package reviewcsv

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// ColumnMapping maps canonical fields to source headers. A field with no
// entry is ignored.
type ColumnMapping map[Field]string

// ProposeMapping guesses a mapping from headers. Exact name, label and alias
// matches claim headers first, then remaining fields take the first unclaimed
// header containing one of their names. A header is never proposed for two
// fields.
func ProposeMapping(headers []string) ColumnMapping {
	m := ColumnMapping{}
	claimed := make(map[int]bool, len(headers))
	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = normalizeHeader(h)
	}

	for _, f := range Fields {
		for i := range headers {
			if claimed[i] {
				continue
			}
			if matchesExactly(f, norm[i]) {
				m[f] = headers[i]
				claimed[i] = true
				break
			}
		}
	}

	for _, f := range Fields {
		if _, ok := m[f]; ok {
			continue
		}
	headerLoop:
		for i := range headers {
			if claimed[i] {
				continue
			}
			for _, c := range candidates(f) {
				if len(c) >= 3 && strings.Contains(norm[i], c) {
					m[f] = headers[i]
					claimed[i] = true
					break headerLoop
				}
			}
		}
	}

	return m
}

// Set maps field to header, replacing any previous choice.
func (m ColumnMapping) Set(field Field, header string) {
	m[field] = header
}

// Ignore removes field from the mapping.
func (m ColumnMapping) Ignore(field Field) {
	delete(m, field)
}

// IsComplete reports whether every required field has a header.
func (m ColumnMapping) IsComplete() bool {
	return len(m.Missing()) == 0
}

// Missing lists required fields without a header.
func (m ColumnMapping) Missing() []Field {
	var out []Field
	for _, f := range RequiredFields {
		if strings.TrimSpace(m[f]) == "" {
			out = append(out, f)
		}
	}
	return out
}

// Check verifies the mapping is complete and only points at real headers.
func (m ColumnMapping) Check(headers []string) error {
	if missing := m.Missing(); len(missing) > 0 {
		names := make([]string, len(missing))
		for i, f := range missing {
			names[i] = string(f)
		}
		return fmt.Errorf("%w: %s not mapped", ErrIncompleteMapping, strings.Join(names, ", "))
	}
	for f, h := range m {
		if indexOf(headers, h) < 0 {
			return fmt.Errorf("%w: %q for %s", ErrUnknownHeader, h, f)
		}
	}
	return m.Distinct()
}

// Distinct fails when one header feeds more than one field.
func (m ColumnMapping) Distinct() error {
	owner := make(map[string]Field, len(m))
	for _, f := range m.Fields() {
		h := m[f]
		if prev, ok := owner[h]; ok {
			return fmt.Errorf("%w: %q is mapped to both %s and %s", ErrDuplicateMapping, h, prev, f)
		}
		owner[h] = f
	}
	return nil
}

// HeaderFor returns the source header mapped to f, or the field name.
func (m ColumnMapping) HeaderFor(f Field) string {
	if h := strings.TrimSpace(m[f]); h != "" {
		return h
	}
	return string(f)
}

// Candidate is a row projected onto canonical fields.
type Candidate struct {
	Row    int
	Values map[Field]string
}

// Get returns the trimmed value for f.
func (c Candidate) Get(f Field) string {
	return c.Values[f]
}

// Apply projects row onto the mapping. Values are trimmed.
func (m ColumnMapping) Apply(row ParsedRow) Candidate {
	c := Candidate{Row: row.Row, Values: make(map[Field]string, len(m))}
	for f, h := range m {
		c.Values[f] = strings.TrimSpace(row.Value(h))
	}
	return c
}

// ToWire renders the mapping as {source header -> canonical field}. A header
// shared by two fields has no wire form.
func (m ColumnMapping) ToWire() (map[string]string, error) {
	if err := m.Distinct(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for f, h := range m {
		out[h] = string(f)
	}
	return out, nil
}

// Fields returns the mapped fields in canonical order.
func (m ColumnMapping) Fields() []Field {
	out := make([]Field, 0, len(m))
	for f := range m {
		out = append(out, f)
	}
	order := make(map[Field]int, len(Fields))
	for i, f := range Fields {
		order[f] = i
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// ResolveWire converts a {sourceColumnIndexOrName -> canonicalField} mapping
// into a ColumnMapping over headers. Values of "" or "ignored" are skipped.
// Two sources naming the same field, or one column reached through both its
// name and its index for different fields, are rejected.
func ResolveWire(headers []string, wire map[string]string) (ColumnMapping, error) {
	m := ColumnMapping{}
	for src, target := range wire {
		target = strings.TrimSpace(target)
		if target == "" || strings.EqualFold(target, "ignored") {
			continue
		}
		f, ok := ParseField(target)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, target)
		}

		header := src
		if idx := indexOf(headers, src); idx < 0 {
			i, err := strconv.Atoi(strings.TrimSpace(src))
			if err != nil || i < 0 || i >= len(headers) {
				return nil, fmt.Errorf("%w: %q", ErrUnknownHeader, src)
			}
			header = headers[i]
		}
		if prev, ok := m[f]; ok && prev != header {
			return nil, fmt.Errorf("%w: %s is mapped from %q and %q", ErrDuplicateMapping, f, prev, header)
		}
		m[f] = header
	}
	if err := m.Distinct(); err != nil {
		return nil, err
	}
	return m, nil
}

func matchesExactly(f Field, norm string) bool {
	for _, c := range candidates(f) {
		if norm == c {
			return true
		}
	}
	return false
}

func candidates(f Field) []string {
	spec := fieldSpecs[f]
	out := []string{normalizeHeader(string(f)), normalizeHeader(spec.label)}
	for _, a := range spec.aliases {
		out = append(out, normalizeHeader(a))
	}
	return out
}

func normalizeHeader(s string) string {
	s = cases.Fold().String(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func indexOf(headers []string, h string) int {
	for i, x := range headers {
		if x == h {
			return i
		}
	}
	return -1
}
