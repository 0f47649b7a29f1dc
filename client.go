package vcr

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// HTTPSender is the live Sender backed by an *http.Client.
//
// Redirect responses are returned as-is; following them is the job of the
// redirect package.
type HTTPSender struct {
	client *http.Client
}

var _ Sender = (*HTTPSender)(nil)

// NewHTTPSender returns a Sender using client. If client is nil, a client
// around http.DefaultTransport is used. The client's CheckRedirect policy is
// replaced on a copy so it never follows redirects.
func NewHTTPSender(client *http.Client) *HTTPSender {
	var c http.Client
	if client != nil {
		c = *client
	}
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPSender{client: &c}
}

// Send implements Sender. The response body is always read in full and
// closed.
func (s *HTTPSender) Send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	return NewResponse(httpResp.StatusCode, statusMessage(httpResp.StatusCode, httpResp.Status), httpResp.Header, data)
}

func buildHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if req.URL == nil {
		return nil, fmt.Errorf("vcr: request has no url")
	}
	body, err := req.Body.reader()
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vv := range req.Header {
		httpReq.Header[k] = append([]string(nil), vv...)
	}
	if ct := contentTypeHeader(req); ct != "" {
		httpReq.Header.Set("Content-Type", ct)
	}
	return httpReq, nil
}

func contentTypeHeader(req *Request) string {
	switch req.Body.Kind() {
	case BodyNone:
		return ""
	case BodyText:
		mt := req.ContentType
		if mt == "" {
			mt = "text/plain"
		}
		parsed, params, err := mime.ParseMediaType(mt)
		if err != nil || params["charset"] != "" {
			return mt
		}
		params["charset"] = req.Body.Encoding()
		return mime.FormatMediaType(parsed, params)
	}
	return req.ContentType
}
