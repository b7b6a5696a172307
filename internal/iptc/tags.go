package iptc

import (
	"strings"
)

// TagNotFound is returned by TagForField when no tag name matches
const TagNotFound = -1

// Tag is one dataset of the IPTC application record
type Tag struct {
	Code int
	Name string
}

// tagTable is kept in declaration order; TagForField depends on it.
var tagTable = [...]Tag{
	{5, "Object Name"},
	{7, "Edit Status"},
	{8, "Editorial Update"},
	{10, "Urgency"},
	{12, "Subject Reference"},
	{15, "Category"},
	{20, "Supplemental Category"},
	{22, "Fixture Identifier"},
	{25, "Keywords"},
	{30, "Release Date"},
	{35, "Release Time"},
	{40, "Special Instructions"},
	{45, "Reference Service"},
	{47, "Reference Date"},
	{50, "Reference Number"},
	{55, "Created Date"},
	{60, "Created Time"},
	{65, "Originating Program"},
	{70, "Program Version"},
	{75, "Object Cycle"},
	{80, "Byline"},
	{85, "Byline Title"},
	{90, "City"},
	{92, "Sublocation"},
	{95, "State/Province"},
	{100, "Country Code"},
	{101, "Country Name"},
	{103, "Original Transmission Reference"},
	{105, "Headline"},
	{110, "Credit"},
	{115, "Source"},
	{116, "Copyright Notice"},
	{118, "Contact"},
	{120, "caption"},
	{121, "Local Caption"},
	{122, "Writer/Editor"},
	{130, "Image Type"},
	{131, "Image Orientation"},
	{135, "Language Identifier"},
	{150, "Audio Type"},
	{151, "Audio Sampling Rate"},
	{152, "Audio Sampling Resolution"},
	{153, "Audio Duration"},
	{154, "Audio Outcue"},
	{184, "Job Identifier"},
	{187, "Master Document Identifier"},
	{188, "Short Document Identifier"},
	{189, "Unique Document Identifier"},
	{190, "Owner ID"},
	{221, "Object Preview Data"},
	{225, "Classified Indicator"},
	{230, "Person Shown"},
	{231, "Location Shown"},
	{232, "Organization Shown"},
	{240, "Content Description"},
	{242, "Data Source"},
	{255, "Rasterized Caption"},
}

// Tags returns a copy of the known tags in declaration order
func Tags() []Tag {
	out := make([]Tag, len(tagTable))
	copy(out, tagTable[:])
	return out
}

// TagName returns the name registered for a dataset number
func TagName(code int) (string, bool) {
	for _, tag := range tagTable {
		if tag.Code == code {
			return tag.Name, true
		}
	}
	return "", false
}

// TagForField returns the code of the first tag whose name contains field,
// ignoring case, or TagNotFound. An empty field is contained in every name.
func TagForField(field string) int {
	needle := strings.ToLower(field)
	for _, tag := range tagTable {
		if strings.Contains(strings.ToLower(tag.Name), needle) {
			return tag.Code
		}
	}
	return TagNotFound
}
