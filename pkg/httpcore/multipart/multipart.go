// Package multipart implements multipart/form-data encode/decode: boundary
// detection, part parsing with in-memory bodies, and streaming assembly
// for large uploads.
package multipart

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/neoteroi/httpcore/pkg/httpcore/errdefs"
)

// SpoolThreshold is a size limit for a single part's body. No code in this
// package reads it; part bodies are not spooled to disk.
const SpoolThreshold = 1 << 20 // 1 MiB

// MaxInMemoryTextPart is the size above which a non-file text part is
// accepted but flagged as oversized.
const MaxInMemoryTextPart = 1 << 20 // 1 MiB

// GenerateBoundary returns a fresh "----<32 hex chars>" boundary.
func GenerateBoundary() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "----" + hex.EncodeToString(buf), nil
}

// BoundaryFromContentType extracts the boundary parameter from a
// "multipart/form-data; boundary=..." content type.
func BoundaryFromContentType(contentType []byte) (string, error) {
	ct := string(contentType)
	parts := strings.Split(ct, ";")
	if len(parts) < 2 || !strings.Contains(strings.ToLower(parts[0]), "multipart/form-data") {
		return "", errdefs.ErrBadRequestFormat
	}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "boundary=") {
			v := p[len("boundary="):]
			v = strings.Trim(v, `"`)
			if v == "" {
				return "", errdefs.ErrBadRequestFormat
			}
			return v, nil
		}
	}
	return "", errdefs.ErrBadRequestFormat
}

// FileBuffer wraps a part body. NewFileBuffer, the only constructor,
// keeps the body in memory whatever its size; no code in this package
// spools a body to a temporary file, so the file-backed branches of Bytes
// and Close run only for a buffer whose file field has been set.
type FileBuffer struct {
	mem  []byte
	file *os.File
	size int64
}

// NewFileBuffer wraps data (already fully read) as an in-memory buffer.
func NewFileBuffer(data []byte) *FileBuffer {
	return &FileBuffer{mem: data, size: int64(len(data))}
}

// Size returns the buffer's total byte length.
func (f *FileBuffer) Size() int64 { return f.size }

// Bytes returns the whole buffer contents, reading the spooled file back
// into memory if necessary.
func (f *FileBuffer) Bytes() ([]byte, error) {
	if f.file == nil {
		return f.mem, nil
	}
	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f.file)
}

// SaveTo copies the buffer's contents to path.
func (f *FileBuffer) SaveTo(path string) error {
	data, err := f.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Close releases any spooled temporary file.
func (f *FileBuffer) Close() error {
	if f.file != nil {
		name := f.file.Name()
		err := f.file.Close()
		_ = os.Remove(name)
		return err
	}
	return nil
}

// FormPart is one decoded part of a multipart body.
type FormPart struct {
	Name        string
	FileName    string
	ContentType string
	Charset     string
	Buffer      *FileBuffer
}

// IsFile reports whether the part carries a file name.
func (p *FormPart) IsFile() bool { return p.FileName != "" }

// Bytes returns the part's whole body.
func (p *FormPart) Bytes() ([]byte, error) { return p.Buffer.Bytes() }

// Parse decodes a complete multipart body already materialised in
// memory into an ordered list of parts.
func Parse(boundary string, body []byte) ([]*FormPart, error) {
	delim := []byte("--" + boundary)
	segments := bytes.Split(body, delim)
	var parts []*FormPart
	var errs *multierror.Error

	for _, seg := range segments {
		seg = bytes.TrimPrefix(seg, []byte("\r\n"))
		if len(seg) == 0 || bytes.Equal(seg, []byte("--")) || bytes.HasPrefix(seg, []byte("--")) {
			continue
		}
		seg = bytes.TrimSuffix(seg, []byte("\r\n"))

		headerEnd := bytes.Index(seg, []byte("\r\n\r\n"))
		if headerEnd == -1 {
			errs = multierror.Append(errs, fmt.Errorf("multipart: missing header block"))
			continue
		}
		headerBlock := seg[:headerEnd]
		partBody := seg[headerEnd+4:]

		part, err := parseHeaders(headerBlock)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		part.Buffer = NewFileBuffer(partBody)
		parts = append(parts, part)
	}

	if errs != nil {
		return parts, errs.ErrorOrNil()
	}
	return parts, nil
}

func parseHeaders(block []byte) (*FormPart, error) {
	part := &FormPart{Charset: "utf-8"}
	lines := bytes.Split(block, []byte("\r\n"))
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		colon := bytes.IndexByte(line, ':')
		if colon == -1 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(string(line[:colon])))
		value := strings.TrimSpace(string(line[colon+1:]))
		switch name {
		case "content-disposition":
			parseDisposition(value, &part.Name, &part.FileName)
		case "content-type":
			ct, charset := splitContentType(value)
			part.ContentType = ct
			if charset != "" {
				part.Charset = charset
			}
		}
	}
	if part.Name == "" {
		return nil, errdefs.ErrBadRequestFormat
	}
	return part, nil
}

func splitContentType(value string) (string, string) {
	pieces := strings.Split(value, ";")
	ct := strings.TrimSpace(pieces[0])
	charset := ""
	for _, p := range pieces[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "charset=") {
			charset = strings.ToLower(strings.Trim(p[len("charset="):], `"`))
		}
	}
	return ct, charset
}

func parseDisposition(value string, name, fileName *string) {
	pieces := strings.Split(value, ";")
	for _, p := range pieces[1:] {
		p = strings.TrimSpace(p)
		eq := strings.IndexByte(p, '=')
		if eq == -1 {
			continue
		}
		key := strings.ToLower(p[:eq])
		val := strings.Trim(p[eq+1:], `"`)
		switch key {
		case "name":
			*name = val
		case "filename":
			*fileName = val
		}
	}
}

// SimplifyFormData collapses single-valued keys to a scalar: non-file
// text parts decode to a string using their declared charset (default
// utf-8); file parts remain as *FormPart. A name carried by several parts
// maps to a []any of their values in part order. A part's text exceeding
// MaxInMemoryTextPart is still decoded but recorded in the returned
// warning error (wrapped, non-fatal).
func SimplifyFormData(parts []*FormPart) (map[string]any, error) {
	out := map[string]any{}
	var warnings *multierror.Error
	for _, p := range parts {
		var value any = p
		if !p.IsFile() {
			data, err := p.Bytes()
			if err != nil {
				return nil, err
			}
			if int64(len(data)) > MaxInMemoryTextPart {
				warnings = multierror.Append(warnings, fmt.Errorf(
					"multipart: field %q exceeds %d bytes", p.Name, MaxInMemoryTextPart))
			}
			value = decodePartText(data, p.Charset)
		}
		switch prev := out[p.Name].(type) {
		case nil:
			out[p.Name] = value
		case []any:
			out[p.Name] = append(prev, value)
		default:
			out[p.Name] = []any{prev, value}
		}
	}
	if warnings != nil {
		return out, warnings.ErrorOrNil()
	}
	return out, nil
}

func decodePartText(data []byte, charset string) string {
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(data)
	}
	// Non-UTF-8 declared charsets fall back to a byte-for-codepoint
	// mapping (covers iso-8859-1/latin1, the only other charset this
	// core is asked to support).
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}
