package multipart

import (
	"bytes"
	"context"
	"io"
	"testing"

	"gotest.tools/v3/assert"
)

// drainEncoder runs an Encoder to completion and returns the full wire body.
func drainEncoder(t *testing.T, enc *Encoder) []byte {
	t.Helper()
	var out bytes.Buffer
	for {
		chunk, err := enc.Next(context.Background())
		out.Write(chunk)
		if err == io.EOF {
			return out.Bytes()
		}
		assert.NilError(t, err)
	}
}

func TestStreamingReaderRoundTripsEncoderOutput(t *testing.T) {
	enc := NewEncoder("BOUND", []PartSource{
		{Name: "a", Body: []byte("first")},
		{Name: "upload", FileName: "f.txt", ContentType: "text/plain", Body: []byte("second")},
	})
	wire := drainEncoder(t, enc)

	reader := NewStreamingReader(bytes.NewReader(wire), "BOUND")

	part, err := reader.NextPart()
	assert.NilError(t, err)
	assert.Equal(t, part.Name, "a")
	assert.Equal(t, part.IsFile(), false)

	body, err := drainPart(t, part)
	assert.NilError(t, err)
	assert.Equal(t, string(body), "first")

	part2, err := reader.NextPart()
	assert.NilError(t, err)
	assert.Equal(t, part2.Name, "upload")
	assert.Equal(t, part2.FileName, "f.txt")
	assert.Equal(t, part2.ContentType, "text/plain")

	body2, err := drainPart(t, part2)
	assert.NilError(t, err)
	assert.Equal(t, string(body2), "second")

	_, err = reader.NextPart()
	assert.Equal(t, err, io.EOF)
}

func drainPart(t *testing.T, p *StreamingFormPart) ([]byte, error) {
	t.Helper()
	var out bytes.Buffer
	for {
		chunk, err := p.Next(context.Background())
		out.Write(chunk)
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func TestStreamingFormPartSaveToWritesFile(t *testing.T) {
	enc := NewEncoder("B2", []PartSource{
		{Name: "upload", FileName: "f.bin", Body: []byte("binarydata")},
	})
	wire := drainEncoder(t, enc)

	reader := NewStreamingReader(bytes.NewReader(wire), "B2")
	part, err := reader.NextPart()
	assert.NilError(t, err)

	path := t.TempDir() + "/out.bin"
	assert.NilError(t, part.SaveTo(context.Background(), path))
}
