package multipart

import (
	"bytes"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
)

func TestEncoderWritesHeaderBodyAndClosingBoundary(t *testing.T) {
	enc := NewEncoder("BOUND", []PartSource{
		{Name: "a", Body: []byte("value")},
	})
	wire := string(drainEncoder(t, enc))

	assert.Assert(t, strings.Contains(wire, "--BOUND\r\n"))
	assert.Assert(t, strings.Contains(wire, `Content-Disposition: form-data; name="a"`))
	assert.Assert(t, strings.Contains(wire, "value"))
	assert.Assert(t, strings.HasSuffix(wire, "--BOUND--\r\n"))
}

func TestEncoderStreamsReaderPartsInChunks(t *testing.T) {
	enc := NewEncoder("BOUND", []PartSource{
		{Name: "stream", Reader: bytes.NewReader([]byte("streamed-body"))},
	})
	wire := string(drainEncoder(t, enc))
	assert.Assert(t, strings.Contains(wire, "streamed-body"))
}

func TestEncoderSetsFileNameAndContentType(t *testing.T) {
	enc := NewEncoder("BOUND", []PartSource{
		{Name: "upload", FileName: "a.png", ContentType: "image/png", Body: []byte("bin")},
	})
	wire := string(drainEncoder(t, enc))
	assert.Assert(t, strings.Contains(wire, `filename="a.png"`))
	assert.Assert(t, strings.Contains(wire, "Content-Type: image/png"))
}
