package vcr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// An Interaction is one recorded request/response pair. It is immutable:
// accessors return fresh copies, and filters run before an Interaction is
// built.
type Interaction struct {
	req  recordedRequest
	resp recordedResponse

	// raw holds the entry as read from disk, so a replayed entry is
	// written back with its original key order.
	raw json.RawMessage
}

// recorded* mirror the on-disk layout field for field. Field order is the
// serialization order.
type recordedBody struct {
	Encoding string `json:"encoding"`
	Base64   string `json:"Base64_string"`
}

type recordedRequest struct {
	Method  string              `json:"method"`
	URI     string              `json:"uri"`
	Body    *recordedBody       `json:"body"`
	Headers map[string][]string `json:"headers"`
}

type recordedStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type recordedResponse struct {
	Status  recordedStatus      `json:"status"`
	Headers map[string][]string `json:"headers"`
	Body    *recordedBody       `json:"body"`
}

type recordedInteraction struct {
	Request  recordedRequest  `json:"request"`
	Response recordedResponse `json:"response"`
}

type cassetteFile struct {
	Interactions []Interaction `json:"http_interactions"`
}

// NewInteraction snapshots req and resp. Stream request bodies must have
// been buffered (see Request.Clone).
func NewInteraction(req *Request, resp *Response) (Interaction, error) {
	rb, err := encodeBody(req.Body)
	if err != nil {
		return Interaction{}, fmt.Errorf("vcr: record request body: %w", err)
	}
	sb, err := encodeBody(resp.Body)
	if err != nil {
		return Interaction{}, fmt.Errorf("vcr: record response body: %w", err)
	}
	return Interaction{
		req: recordedRequest{
			Method:  req.Method,
			URI:     req.URI(),
			Body:    rb,
			Headers: copyHeader(req.Header),
		},
		resp: recordedResponse{
			Status:  recordedStatus{Code: resp.StatusCode, Message: resp.Status},
			Headers: copyHeader(resp.Header),
			Body:    sb,
		},
	}, nil
}

// Method returns the recorded request method.
func (i Interaction) Method() string { return i.req.Method }

// URI returns the recorded request URI.
func (i Interaction) URI() string { return i.req.URI }

// Request decodes the recorded request.
func (i Interaction) Request() (*Request, error) {
	req, err := NewRequest(i.req.Method, i.req.URI, NoBody())
	if err != nil {
		return nil, err
	}
	req.Header = http.Header(copyHeader(i.req.Headers))
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.ContentType, _ = parseContentType(req.Header.Get("Content-Type"))
	if i.req.Body == nil {
		return req, nil
	}
	data, err := base64.StdEncoding.DecodeString(i.req.Body.Base64)
	if err != nil {
		return nil, fmt.Errorf("vcr: decode request body: %w", err)
	}
	if strings.EqualFold(i.req.Body.Encoding, binaryEncoding) {
		req.Body = BytesBody(data)
		return req, nil
	}
	if req.Body, err = decodeText(data, i.req.Body.Encoding); err != nil {
		// Unknown charsets are passed through untouched.
		req.Body = TextBody(string(data), defaultEncoding)
	}
	return req, nil
}

// Response decodes the recorded response.
func (i Interaction) Response() (*Response, error) {
	var data []byte
	if i.resp.Body != nil {
		var err error
		if data, err = base64.StdEncoding.DecodeString(i.resp.Body.Base64); err != nil {
			return nil, fmt.Errorf("vcr: decode response body: %w", err)
		}
		if data == nil {
			data = []byte{}
		}
	}
	resp, err := NewResponse(i.resp.Status.Code, i.resp.Status.Message, http.Header(copyHeader(i.resp.Headers)), data)
	if err != nil {
		return nil, err
	}
	if i.resp.Body == nil {
		return resp, nil
	}
	enc := i.resp.Body.Encoding
	switch {
	case strings.EqualFold(enc, binaryEncoding):
		resp.Body = BytesBody(data)
	case resp.Body.Kind() == BodyText && enc != "" && !strings.EqualFold(resp.Body.Encoding(), enc):
		// An unknown label keeps the body decoded from the headers.
		if body, err := decodeText(data, enc); err == nil {
			resp.Body = body
		}
	}
	return resp, nil
}

// MarshalJSON implements json.Marshaler. An interaction decoded from JSON
// marshals back to the same object, key order included.
func (i Interaction) MarshalJSON() ([]byte, error) {
	if i.raw != nil {
		return i.raw, nil
	}
	return json.Marshal(recordedInteraction{Request: i.req, Response: i.resp})
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Interaction) UnmarshalJSON(b []byte) error {
	var r recordedInteraction
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	i.req, i.resp = r.Request, r.Response
	i.raw = append(json.RawMessage(nil), b...)
	return nil
}

func encodeBody(b Body) (*recordedBody, error) {
	switch b.Kind() {
	case BodyNone:
		return nil, nil
	case BodyStream:
		return nil, errUnbufferedStream
	}
	data, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	encoding := binaryEncoding
	if b.Kind() == BodyText {
		encoding = b.Encoding()
	}
	return &recordedBody{
		Encoding: encoding,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

func copyHeader(h map[string][]string) map[string][]string {
	if h == nil {
		return nil
	}
	out := make(map[string][]string, len(h))
	for k, vv := range h {
		out[k] = append([]string(nil), vv...)
	}
	return out
}
