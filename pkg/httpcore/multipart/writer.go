package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// PartSource describes one outbound part: either an in-memory Body or a
// streaming Reader (mutually exclusive; Reader takes precedence).
type PartSource struct {
	Name        string
	FileName    string
	ContentType string
	Body        []byte
	Reader      io.Reader
}

// Encoder produces the async byte stream for an outbound multipart body:
// for each part, a header block, the part body, then "\r\n", ending with
// the closing boundary.
type Encoder struct {
	boundary string
	parts    []PartSource
	index    int
	stage    int // 0=header, 1=body, 2=trailer, 3=closing, 4=done
	cur      []byte
}

// NewEncoder builds an Encoder over parts using boundary (without the
// leading "--").
func NewEncoder(boundary string, parts []PartSource) *Encoder {
	return &Encoder{boundary: boundary, parts: parts}
}

// Next returns the next chunk of the encoded body, or io.EOF when done.
func (e *Encoder) Next(ctx context.Context) ([]byte, error) {
	for {
		if e.index >= len(e.parts) {
			if e.stage == 3 {
				e.stage = 4
				return []byte("--" + e.boundary + "--\r\n"), nil
			}
			return nil, io.EOF
		}
		part := e.parts[e.index]
		switch e.stage {
		case 0:
			e.stage = 1
			return e.header(part), nil
		case 1:
			if part.Reader != nil {
				buf := make([]byte, 32*1024)
				n, err := part.Reader.Read(buf)
				if n > 0 {
					return buf[:n], nil
				}
				if err == io.EOF {
					e.stage = 2
					continue
				}
				if err != nil {
					return nil, err
				}
				continue
			}
			e.stage = 2
			if len(part.Body) > 0 {
				return part.Body, nil
			}
			continue
		case 2:
			e.stage = 0
			e.index++
			if e.index >= len(e.parts) {
				e.stage = 3
			}
			return []byte("\r\n"), nil
		}
	}
}

func (e *Encoder) header(part PartSource) []byte {
	var buf bytes.Buffer
	buf.WriteString("--" + e.boundary + "\r\n")
	buf.WriteString(`Content-Disposition: form-data; name="`)
	buf.WriteString(part.Name)
	buf.WriteString(`"`)
	if part.FileName != "" {
		buf.WriteString(fmt.Sprintf(`; filename="%s"`, part.FileName))
	}
	buf.WriteString("\r\n")
	if part.ContentType != "" {
		buf.WriteString("Content-Type: " + part.ContentType + "\r\n")
	}
	buf.WriteString("\r\n")
	return buf.Bytes()
}
