// Package identifier decides which folder crops of an image are filed under.
package identifier

import (
	"strings"

	"go-crop-extractor/internal/iptc"
)

// FolderField selects the path-segment strategy
const FolderField = "folder"

// Input carries everything a strategy may look at
type Input struct {
	Metadata iptc.Metadata
	Path     string
	// FolderIndex is nil when folder_id_idx was not given
	FolderIndex *int
}

// Strategy resolves an identifier from an Input
type Strategy interface {
	Resolve(in Input) (string, bool)
	GetStrategyName() string
}

// FolderStrategy picks a segment of the blob path
type FolderStrategy struct{}

// NewFolderStrategy creates a new folder strategy
func NewFolderStrategy() Strategy {
	return &FolderStrategy{}
}

// Resolve returns the path segment at the folder index. Negative indexes
// count from the last segment.
func (s *FolderStrategy) Resolve(in Input) (string, bool) {
	if in.FolderIndex == nil {
		return "", false
	}
	segments := strings.Split(in.Path, "/")
	idx := *in.FolderIndex
	if idx < 0 {
		idx += len(segments)
	}
	if idx < 0 || idx >= len(segments) {
		return "", false
	}
	if segments[idx] == "" {
		return "", false
	}
	return segments[idx], true
}

// GetStrategyName returns the strategy name
func (s *FolderStrategy) GetStrategyName() string {
	return "folder"
}

// MetadataFieldStrategy reads an IPTC dataset chosen by a field name
type MetadataFieldStrategy struct {
	field string
}

// NewMetadataFieldStrategy creates a strategy for the given field name
func NewMetadataFieldStrategy(field string) Strategy {
	return &MetadataFieldStrategy{field: field}
}

// Resolve looks the field up in the tag table and decodes its value
func (s *MetadataFieldStrategy) Resolve(in Input) (string, bool) {
	tag := iptc.TagForField(s.field)
	if tag == iptc.TagNotFound {
		return "", false
	}
	value, ok := in.Metadata.Text(tag)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// GetStrategyName returns the strategy name
func (s *MetadataFieldStrategy) GetStrategyName() string {
	return "metadata_field"
}

// NoneStrategy never yields an identifier
type NoneStrategy struct{}

// Resolve always reports no identifier
func (NoneStrategy) Resolve(Input) (string, bool) { return "", false }

// GetStrategyName returns the strategy name
func (NoneStrategy) GetStrategyName() string { return "none" }

// ForField selects the strategy for an id_field value
func ForField(idField string) Strategy {
	switch idField {
	case "":
		return NoneStrategy{}
	case FolderField:
		return NewFolderStrategy()
	default:
		return NewMetadataFieldStrategy(idField)
	}
}
