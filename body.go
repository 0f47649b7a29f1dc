package vcr

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
)

const (
	defaultEncoding = "UTF-8"
	binaryEncoding  = "ASCII-8BIT"
)

var errUnbufferedStream = errors.New("vcr: stream body must be buffered before it can be read twice")

// BodyKind identifies which variant a Body holds.
type BodyKind int

// Possible values:
const (
	BodyNone BodyKind = iota
	BodyText
	BodyBytes
	BodyStream
)

func (k BodyKind) String() string {
	switch k {
	case BodyNone:
		return "none"
	case BodyText:
		return "text"
	case BodyBytes:
		return "bytes"
	case BodyStream:
		return "stream"
	}
	return fmt.Sprintf("BodyKind(%d)", int(k))
}

// Body is the payload of a Request or Response. The variant is fixed when the
// Body is constructed; the zero value is an empty body.
type Body struct {
	kind     BodyKind
	text     string
	encoding string
	data     []byte
	stream   io.Reader
}

// NoBody returns an empty body.
func NoBody() Body { return Body{} }

// TextBody returns a text body that is written to the wire in the named
// character encoding. An empty encoding means UTF-8.
func TextBody(s, encoding string) Body {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return Body{kind: BodyText, text: s, encoding: encoding}
}

// BytesBody returns a body holding a copy of b.
func BytesBody(b []byte) Body {
	data := make([]byte, len(b))
	copy(data, b)
	return Body{kind: BodyBytes, data: data}
}

// StreamBody returns a body that is read from r when the request is sent.
// If r implements io.Closer it is closed once the stream has been consumed.
func StreamBody(r io.Reader) Body {
	if r == nil {
		return NoBody()
	}
	return Body{kind: BodyStream, stream: r}
}

// Kind reports the variant held by b.
func (b Body) Kind() BodyKind { return b.kind }

// Encoding returns the character encoding of a text body, or the empty
// string for other variants.
func (b Body) Encoding() string { return b.encoding }

// Text returns the body as a string. Byte bodies are returned as-is, stream
// bodies as the empty string.
func (b Body) Text() string {
	switch b.kind {
	case BodyText:
		return b.text
	case BodyBytes:
		return string(b.data)
	}
	return ""
}

// Bytes returns the bytes that go on the wire. Stream bodies return an error;
// use Request.Clone to buffer them first.
func (b Body) Bytes() ([]byte, error) {
	switch b.kind {
	case BodyNone:
		return nil, nil
	case BodyText:
		return encodeText(b.text, b.encoding)
	case BodyBytes:
		out := make([]byte, len(b.data))
		copy(out, b.data)
		return out, nil
	}
	return nil, errUnbufferedStream
}

// Equal reports whether b and o hold the same variant and content. Stream
// bodies are equal only if they share the same reader.
func (b Body) Equal(o Body) bool {
	if b.kind != o.kind {
		return false
	}
	switch b.kind {
	case BodyText:
		return b.text == o.text && strings.EqualFold(b.encoding, o.encoding)
	case BodyBytes:
		return bytes.Equal(b.data, o.data)
	case BodyStream:
		return b.stream == o.stream
	}
	return true
}

// reader returns a reader over the body. A stream body hands out its
// underlying reader, so it can be read once.
func (b Body) reader() (io.Reader, error) {
	if b.kind == BodyStream {
		return b.stream, nil
	}
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

// buffered converts a stream body into a byte body, closing the stream.
// Other variants are returned unchanged.
func (b Body) buffered() (Body, error) {
	if b.kind != BodyStream {
		return b, nil
	}
	data, err := io.ReadAll(b.stream)
	if c, ok := b.stream.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return Body{}, fmt.Errorf("vcr: buffer request body: %w", err)
	}
	return Body{kind: BodyBytes, data: data}, nil
}

func isUTF8(encoding string) bool {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return true
	}
	return false
}

func encodeText(s, encoding string) ([]byte, error) {
	if isUTF8(encoding) {
		return []byte(s), nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("vcr: unknown text encoding %q: %w", encoding, err)
	}
	out, err := enc.NewEncoder().String(s)
	if err != nil {
		return nil, fmt.Errorf("vcr: encode text as %s: %w", encoding, err)
	}
	return []byte(out), nil
}

// decodeText builds a text body from wire bytes in the named encoding.
func decodeText(data []byte, encoding string) (Body, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	if isUTF8(encoding) {
		return TextBody(string(data), encoding), nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return Body{}, fmt.Errorf("vcr: unknown text encoding %q: %w", encoding, err)
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return Body{}, fmt.Errorf("vcr: decode text as %s: %w", encoding, err)
	}
	return TextBody(string(out), encoding), nil
}
