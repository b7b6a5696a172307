package identifier

import (
	"testing"

	"go-crop-extractor/internal/iptc"

	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int { return &i }

func TestFolderStrategy(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		idx    *int
		want   string
		wantOK bool
	}{
		{"first segment", "photos/2024/img.jpg", intPtr(0), "photos", true},
		{"middle segment", "photos/2024/img.jpg", intPtr(1), "2024", true},
		{"filename segment", "photos/2024/img.jpg", intPtr(2), "img.jpg", true},
		{"negative index", "photos/2024/img.jpg", intPtr(-2), "2024", true},
		{"out of range", "photos/img.jpg", intPtr(5), "", false},
		{"negative out of range", "photos/img.jpg", intPtr(-3), "", false},
		{"no index", "photos/img.jpg", nil, "", false},
		{"empty segment", "/img.jpg", intPtr(0), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewFolderStrategy().Resolve(Input{Path: tt.path, FolderIndex: tt.idx})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetadataFieldStrategy(t *testing.T) {
	meta := iptc.Metadata{
		22:  {[]byte("ABC-123")},
		80:  {[]byte("Jane Doe")},
		25:  {[]byte("cat"), []byte("dog")},
		116: {[]byte{0xff, 0xfe}},
		120: {[]byte("")},
	}

	tests := []struct {
		field  string
		want   string
		wantOK bool
	}{
		{"identifier", "ABC-123", true},
		{"byline", "Jane Doe", true},
		{"keywords", "", false},
		{"copyright", "", false},
		{"caption", "", false},
		{"headline", "", false},
		{"no such field", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, ok := NewMetadataFieldStrategy(tt.field).Resolve(Input{Metadata: meta})
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMetadataFieldStrategy_NoMetadata(t *testing.T) {
	_, ok := NewMetadataFieldStrategy("identifier").Resolve(Input{Path: "a/b.jpg"})
	assert.False(t, ok)
}

func TestForField(t *testing.T) {
	assert.Equal(t, "none", ForField("").GetStrategyName())
	assert.Equal(t, "folder", ForField("folder").GetStrategyName())
	assert.Equal(t, "metadata_field", ForField("Folder").GetStrategyName())
	assert.Equal(t, "metadata_field", ForField("caption").GetStrategyName())
}

func TestForField_Resolve(t *testing.T) {
	meta := iptc.Metadata{22: {[]byte("ABC-123")}}

	id, ok := ForField("folder").Resolve(Input{Metadata: meta, Path: "photos/a.jpg", FolderIndex: intPtr(0)})
	assert.True(t, ok)
	assert.Equal(t, "photos", id)

	id, ok = ForField("Fixture").Resolve(Input{Metadata: meta, Path: "photos/a.jpg"})
	assert.True(t, ok)
	assert.Equal(t, "ABC-123", id)

	_, ok = ForField("").Resolve(Input{Metadata: meta, Path: "photos/a.jpg", FolderIndex: intPtr(0)})
	assert.False(t, ok)
}
