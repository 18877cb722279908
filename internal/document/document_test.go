package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSSource_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644))

	src := NewFSSource(dir)
	doc, err := src.Load(context.Background(), Reference{Location: "scan.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "scan.pdf", doc.Ref.Location)
	assert.Equal(t, ContentID([]byte("%PDF-1.4 fake")), doc.Ref.ContentID)
	assert.Equal(t, "application/pdf", doc.MIMEType)
	assert.Equal(t, []byte("%PDF-1.4 fake"), doc.Data)
}

func TestFSSource_LoadMissing(t *testing.T) {
	src := NewFSSource(t.TempDir())
	_, err := src.Load(context.Background(), Reference{Location: "nope.pdf"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestContentID_Stable(t *testing.T) {
	a := ContentID([]byte("same"))
	b := ContentID([]byte("same"))
	c := ContentID([]byte("different"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestDetectMIME(t *testing.T) {
	cases := []struct {
		path string
		data []byte
		want string
	}{
		{"a.pdf", nil, "application/pdf"},
		{"a.PNG", nil, "image/png"},
		{"a.jpeg", nil, "image/jpeg"},
		{"a.tiff", nil, "image/tiff"},
		{"noext", []byte("%PDF-1.7"), "application/pdf"},
		{"noext", []byte("plain"), "application/octet-stream"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectMIME(tc.path, tc.data), tc.path)
	}
}
