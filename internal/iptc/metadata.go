package iptc

import (
	"sort"
	"unicode/utf8"
)

// Metadata maps application record dataset numbers to the values found
// for them, in file order.
type Metadata map[int][][]byte

// repeatable datasets hold lists; they have no single text value.
var repeatable = map[int]bool{
	20:  true, // Supplemental Category
	25:  true, // Keywords
	118: true, // Contact
}

// Values returns every value recorded for a dataset
func (m Metadata) Values(tag int) [][]byte {
	if m == nil {
		return nil
	}
	return m[tag]
}

// Text decodes the value of a single-valued dataset as UTF-8. When a
// non-repeatable dataset occurs more than once the last one wins.
func (m Metadata) Text(tag int) (string, bool) {
	if repeatable[tag] {
		return "", false
	}
	values := m.Values(tag)
	if len(values) == 0 {
		return "", false
	}
	value := values[len(values)-1]
	if !utf8.Valid(value) {
		return "", false
	}
	return string(value), true
}

// Fields lists the names of the datasets present, for logging. Unknown
// datasets are omitted.
func (m Metadata) Fields() []string {
	codes := make([]int, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	names := make([]string, 0, len(codes))
	for _, code := range codes {
		if name, ok := TagName(code); ok {
			names = append(names, name)
		}
	}
	return names
}
