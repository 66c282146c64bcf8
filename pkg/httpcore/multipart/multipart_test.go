package multipart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

func TestBoundaryFromContentTypeExtractsValue(t *testing.T) {
	b, err := BoundaryFromContentType([]byte(`multipart/form-data; boundary=----abc123`))
	require.NoError(t, err)
	assert.Equal(t, "----abc123", b)
}

func TestBoundaryFromContentTypeRejectsWrongType(t *testing.T) {
	_, err := BoundaryFromContentType([]byte("text/plain"))
	assert.ErrorIs(t, err, errdefs.ErrBadRequestFormat)
}

func TestBoundaryFromContentTypeRejectsMissingBoundary(t *testing.T) {
	_, err := BoundaryFromContentType([]byte("multipart/form-data"))
	assert.ErrorIs(t, err, errdefs.ErrBadRequestFormat)
}

func buildBody(boundary string) []byte {
	var out []byte
	out = append(out, []byte("--"+boundary+"\r\n")...)
	out = append(out, []byte(`Content-Disposition: form-data; name="field"`+"\r\n\r\n")...)
	out = append(out, []byte("value\r\n")...)
	out = append(out, []byte("--"+boundary+"\r\n")...)
	out = append(out, []byte(`Content-Disposition: form-data; name="file"; filename="a.txt"`+"\r\n")...)
	out = append(out, []byte("Content-Type: text/plain; charset=utf-8\r\n\r\n")...)
	out = append(out, []byte("file contents\r\n")...)
	out = append(out, []byte("--"+boundary+"--\r\n")...)
	return out
}

func TestParseDecodesFieldAndFilePart(t *testing.T) {
	body := buildBody("XYZ")
	parts, err := Parse("XYZ", body)
	require.NoError(t, err)
	require.Len(t, parts, 2)

	field := parts[0]
	assert.Equal(t, "field", field.Name)
	assert.False(t, field.IsFile())
	data, err := field.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "value", string(data))

	file := parts[1]
	assert.Equal(t, "file", file.Name)
	assert.True(t, file.IsFile())
	assert.Equal(t, "a.txt", file.FileName)
	assert.Equal(t, "text/plain", file.ContentType)
}

func TestParseReportsMissingHeaderBlock(t *testing.T) {
	body := []byte("--B\r\nnotaheaderblock\r\n--B--\r\n")
	_, err := Parse("B", body)
	assert.Error(t, err)
}

func TestSimplifyFormDataCollapsesTextPartsToStrings(t *testing.T) {
	parts, err := Parse("XYZ", buildBody("XYZ"))
	require.NoError(t, err)

	simplified, err := SimplifyFormData(parts)
	require.NoError(t, err)
	assert.Equal(t, "value", simplified["field"])

	filePart, ok := simplified["file"].(*FormPart)
	require.True(t, ok)
	assert.Equal(t, "a.txt", filePart.FileName)
}

func TestFileBufferSaveToWritesContents(t *testing.T) {
	buf := NewFileBuffer([]byte("hello"))
	dir := t.TempDir()
	path := dir + "/out.txt"
	require.NoError(t, buf.SaveTo(path))

	data, err := buf.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
