package multipart

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net/textproto"
	"os"
	"strings"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

// StreamingFormPart exposes one multipart part as an async byte stream so
// a large upload is not read into memory as a whole; the part reader does
// hold one body line (up to the next '\n') in memory at a time.
type StreamingFormPart struct {
	Name        string
	FileName    string
	ContentType string
	Charset     string

	reader *bufio.Reader
	inner  *partReader
}

// IsFile reports whether the part carries a file name.
func (p *StreamingFormPart) IsFile() bool { return p.FileName != "" }

// Next returns the next chunk of the part's body, or io.EOF when the
// boundary is reached.
func (p *StreamingFormPart) Next(ctx context.Context) ([]byte, error) {
	buf := make([]byte, 32*1024)
	n, err := p.inner.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

// SaveTo streams the part's body directly to path in chunks of at most
// 32 KiB, as returned by Next.
func (p *StreamingFormPart) SaveTo(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	for {
		chunk, err := p.Next(ctx)
		if len(chunk) > 0 {
			if _, werr := f.Write(chunk); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// StreamingReader incrementally parses a multipart/form-data body off an
// io.Reader, yielding one StreamingFormPart at a time. Each part must be
// fully drained (via Next or SaveTo) before calling NextPart again, since
// they share the same underlying boundary scanner.
type StreamingReader struct {
	boundary string
	br       *bufio.Reader
	started  bool
	done     bool
}

// NewStreamingReader builds a StreamingReader over r, using boundary
// (without the leading "--").
func NewStreamingReader(r io.Reader, boundary string) *StreamingReader {
	return &StreamingReader{boundary: boundary, br: bufio.NewReaderSize(r, 64*1024)}
}

// NextPart advances to the next part's header block and returns it ready
// for streaming reads. It returns io.EOF once the closing boundary is
// reached.
func (s *StreamingReader) NextPart() (*StreamingFormPart, error) {
	if s.done {
		return nil, io.EOF
	}
	if !s.started {
		s.started = true
		if err := s.skipToFirstBoundary(); err != nil {
			return nil, err
		}
	}

	tp := textproto.NewReader(s.br)
	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, errdefs.ErrBadRequestFormat
	}

	part := &StreamingFormPart{Charset: "utf-8"}
	parseDisposition(header.Get("Content-Disposition"), &part.Name, &part.FileName)
	if ct := header.Get("Content-Type"); ct != "" {
		contentType, charset := splitContentType(ct)
		part.ContentType = contentType
		if charset != "" {
			part.Charset = charset
		}
	}
	if part.Name == "" {
		return nil, errdefs.ErrBadRequestFormat
	}

	part.inner = &partReader{boundary: s.boundary, br: s.br, reader: s}
	return part, nil
}

func (s *StreamingReader) skipToFirstBoundary() error {
	delim := []byte("--" + s.boundary)
	for {
		line, err := s.br.ReadSlice('\n')
		if err != nil {
			return errdefs.ErrBadRequestFormat
		}
		trimmed := bytes.TrimRight(line, "\r\n")
		if bytes.Equal(trimmed, delim) {
			return nil
		}
	}
}

// partReader reads one part's body, stopping at the next boundary line.
type partReader struct {
	boundary string
	br       *bufio.Reader
	reader   *StreamingReader
	buf      bytes.Buffer
	atEOF    bool
}

func (p *partReader) Read(out []byte) (int, error) {
	if p.atEOF && p.buf.Len() == 0 {
		return 0, io.EOF
	}
	for p.buf.Len() < len(out) && !p.atEOF {
		line, err := p.br.ReadBytes('\n')
		if err != nil && len(line) == 0 {
			p.atEOF = true
			p.reader.done = true
			break
		}
		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "--"+p.boundary {
			p.stripDelimiterCRLF()
			p.atEOF = true
			break
		}
		if trimmed == "--"+p.boundary+"--" {
			p.stripDelimiterCRLF()
			p.atEOF = true
			p.reader.done = true
			break
		}
		p.buf.Write(line)
	}
	return p.buf.Read(out)
}

// stripDelimiterCRLF removes the CRLF (or bare LF) immediately preceding a
// boundary line from the accumulated body: that line break belongs to the
// boundary delimiter per RFC 7578, not to the part's content.
func (p *partReader) stripDelimiterCRLF() {
	b := p.buf.Bytes()
	if n := len(b); n >= 2 && b[n-2] == '\r' && b[n-1] == '\n' {
		p.buf.Truncate(n - 2)
	} else if n := len(b); n >= 1 && b[n-1] == '\n' {
		p.buf.Truncate(n - 1)
	}
}
