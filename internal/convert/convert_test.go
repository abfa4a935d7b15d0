// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "satzung.pdf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"trims", "  Satzung  \n", "Satzung", false},
		{"collapses blank lines", "a\n\n\n\n\nb", "a\n\nb", false},
		{"form feed splits pages", "page1\fpage2", "page1\npage2", false},
		{"collapses spaces", "a     b\t\tc   ", "a b c", false},
		{"umlauts count as text", "Änderung", "Änderung", false},
		{"only whitespace", " \n\f\n ", "", true},
		{"only punctuation", "--- . ---", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalize(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrEmptyText)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPdftotextConverter(t *testing.T) {
	path := writeFile(t, "%PDF")
	var gotArgs []string
	p := &PdftotextConverter{run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		assert.Equal(t, binPdftotext, name)
		gotArgs = args
		return []byte("Satzung der JKU\n\n\n\nArtikel 1"), nil
	}}

	text, err := p.Convert(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Satzung der JKU\n\nArtikel 1", text)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", path, "-"}, gotArgs)
}

func TestPdftotextConverter_Errors(t *testing.T) {
	p := &PdftotextConverter{run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1: Syntax Error")
	}}

	_, err := p.Convert(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = p.Convert(context.Background(), writeFile(t, "junk"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext")

	p.run = func(context.Context, string, ...string) ([]byte, error) { return []byte("\f\f"), nil }
	_, err = p.Convert(context.Background(), writeFile(t, "%PDF"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

// fakeRuntime echoes stdin with a prefix.
type fakeRuntime struct {
	hasImage bool
	images   []string
}

func (f *fakeRuntime) Name() string                   { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	if !f.hasImage {
		return errors.New("no such image")
	}
	return nil
}

func (f *fakeRuntime) Run(_ context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	f.images = append(f.images, image)
	data, _ := io.ReadAll(stdin)
	_, err := stdout.Write(append([]byte("# converted\n"), data...))
	return err
}

func TestMarkitdownConverter(t *testing.T) {
	rt := &fakeRuntime{hasImage: true}
	m, err := NewMarkitdownConverter(context.Background(), rt)
	require.NoError(t, err)

	text, err := m.Convert(context.Background(), writeFile(t, "Tagesordnung"))
	require.NoError(t, err)
	assert.Equal(t, "# converted\nTagesordnung", text)
	assert.Equal(t, []string{imageMarkitdown}, rt.images)
}

func TestMarkitdownConverter_MissingImage(t *testing.T) {
	_, err := NewMarkitdownConverter(context.Background(), &fakeRuntime{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "markitdown image not available in fake")
}

func TestNew(t *testing.T) {
	c, err := New(context.Background(), types.ConversionConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdftotextConverter{}, c)

	_, err = New(context.Background(), types.ConversionConfig{Backend: "ocr"})
	assert.Error(t, err)
}
