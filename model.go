package vcr

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RedirectCountKey is the Request.Properties key holding the number of
// redirects followed so far for a logical request.
const RedirectCountKey = "RedirectCount"

// Sender sends a Request and returns its Response.
//
// Implementations must return an error only if no response was obtained; a
// non-2xx status is not an error.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// SenderFunc adapts an ordinary function to the Sender interface.
type SenderFunc func(ctx context.Context, req *Request) (*Response, error)

// Send calls f(ctx, req).
func (f SenderFunc) Send(ctx context.Context, req *Request) (*Response, error) { return f(ctx, req) }

// A Request is an outgoing HTTP request.
type Request struct {
	Method string
	URL    *url.URL
	Header http.Header
	Body   Body

	// ContentType is the media type of Body, without parameters for text
	// bodies; the charset is taken from the body encoding.
	ContentType string

	// Timeout bounds the whole logical request, redirects included. Zero
	// means no timeout beyond the caller's context.
	Timeout time.Duration

	// Properties carries per-request state across clones, such as the
	// redirect count.
	Properties map[string]any
}

// NewRequest returns a Request for the given method and absolute URL.
func NewRequest(method, rawURL string, body Body) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("vcr: parse request url: %w", err)
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		Method:     method,
		URL:        u,
		Header:     make(http.Header),
		Body:       body,
		Properties: make(map[string]any),
	}, nil
}

// Clone returns a deep copy of r. A stream body is read into memory and
// closed so the clone can be sent more than once; r itself keeps the drained
// stream and should not be sent afterwards.
func (r *Request) Clone() (*Request, error) {
	body, err := r.Body.buffered()
	if err != nil {
		return nil, err
	}
	out := &Request{
		Method:      r.Method,
		Header:      r.Header.Clone(),
		Body:        body,
		ContentType: r.ContentType,
		Timeout:     r.Timeout,
		Properties:  make(map[string]any, len(r.Properties)),
	}
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	if r.URL != nil {
		u := *r.URL
		if r.URL.User != nil {
			user := *r.URL.User
			u.User = &user
		}
		out.URL = &u
	}
	for k, v := range r.Properties {
		out.Properties[k] = v
	}
	return out, nil
}

// URI returns the request target as a string.
func (r *Request) URI() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// A Response is an HTTP response with a fully read body.
type Response struct {
	StatusCode int
	// Status is the reason phrase, e.g. "OK".
	Status      string
	Header      http.Header
	Body        Body
	ContentType string
}

// NewResponse returns a Response whose body variant is chosen from the
// Content-Type header: binary media types keep raw bytes, everything else is
// decoded as text using the declared charset.
func NewResponse(code int, status string, header http.Header, data []byte) (*Response, error) {
	if status == "" {
		status = http.StatusText(code)
	}
	if header == nil {
		header = make(http.Header)
	}
	resp := &Response{StatusCode: code, Status: status, Header: header}

	mediaType, charset := parseContentType(header.Get("Content-Type"))
	resp.ContentType = mediaType
	if data == nil {
		return resp, nil
	}
	if isBinaryContentType(mediaType) {
		resp.Body = BytesBody(data)
		return resp, nil
	}
	body, err := decodeText(data, charset)
	if err != nil {
		// Unknown charsets are passed through untouched.
		body = TextBody(string(data), defaultEncoding)
	}
	resp.Body = body
	return resp, nil
}

var binaryContentTypes = []string{
	"application/zip",
	"application/x-gzip",
	"application/octet-stream",
}

func isBinaryContentType(mediaType string) bool {
	if mediaType == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(mediaType), "image/") {
		return true
	}
	for _, t := range binaryContentTypes {
		if strings.EqualFold(t, mediaType) {
			return true
		}
	}
	return false
}

// parseContentType splits a Content-Type header value into its media type
// and charset. Unparseable values yield the raw value and no charset.
func parseContentType(v string) (mediaType, charset string) {
	if v == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(v, ";", 2)[0]), ""
	}
	return mt, params["charset"]
}

// statusMessage strips the numeric code from an http.Response status line.
func statusMessage(code int, status string) string {
	prefix := fmt.Sprintf("%d ", code)
	if strings.HasPrefix(status, prefix) {
		return strings.TrimPrefix(status, prefix)
	}
	if status == "" {
		return http.StatusText(code)
	}
	return status
}
