package redirect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiftkey/vcr"
)

// scriptedSender answers the n-th request with the n-th response and
// records every request it sees.
type scriptedSender struct {
	responses []*vcr.Response
	seen      []*vcr.Request
	deadlines []time.Time
}

func (s *scriptedSender) Send(ctx context.Context, req *vcr.Request) (*vcr.Response, error) {
	s.seen = append(s.seen, req)
	if d, ok := ctx.Deadline(); ok {
		s.deadlines = append(s.deadlines, d)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.seen) > len(s.responses) {
		return nil, fmt.Errorf("unexpected request %d to %s", len(s.seen), req.URI())
	}
	return s.responses[len(s.seen)-1], nil
}

func redirectTo(status int, location string) *vcr.Response {
	return &vcr.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Location": []string{location}},
	}
}

func okResponse() *vcr.Response {
	return &vcr.Response{StatusCode: http.StatusOK, Status: "OK", Header: http.Header{}, Body: vcr.TextBody("done", "")}
}

func mustRequest(t *testing.T, method, url string, body vcr.Body) *vcr.Request {
	t.Helper()
	req, err := vcr.NewRequest(method, url, body)
	require.NoError(t, err)
	return req
}

func bodyText(t *testing.T, b vcr.Body) string {
	t.Helper()
	data, err := b.Bytes()
	require.NoError(t, err)
	return string(data)
}

func TestIsRedirectStatus(t *testing.T) {
	for _, code := range []int{301, 302, 303, 307, 308} {
		require.True(t, isRedirectStatus(code), code)
	}
	for _, code := range []int{200, 201, 300, 304, 305, 404, 500} {
		require.False(t, isRedirectStatus(code), code)
	}
}

func TestSend_PreservesMethodAndBody(t *testing.T) {
	for _, status := range []int{http.StatusMovedPermanently, http.StatusFound, http.StatusTemporaryRedirect, http.StatusPermanentRedirect} {
		t.Run(fmt.Sprint(status), func(t *testing.T) {
			inner := &scriptedSender{responses: []*vcr.Response{
				redirectTo(status, "https://api.example.com/new"),
				okResponse(),
			}}
			req := mustRequest(t, http.MethodPost, "https://api.example.com/old", vcr.TextBody("payload", ""))
			req.ContentType = "application/json"

			resp, err := New(inner).Send(context.Background(), req)
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			require.Len(t, inner.seen, 2)
			resent := inner.seen[1]
			require.Equal(t, http.MethodPost, resent.Method)
			require.Equal(t, "payload", bodyText(t, resent.Body))
			require.Equal(t, "application/json", resent.ContentType)
			require.Equal(t, "https://api.example.com/new", resent.URI())
		})
	}
}

func TestSend_SeeOther(t *testing.T) {
	inner := &scriptedSender{responses: []*vcr.Response{
		redirectTo(http.StatusSeeOther, "https://api.example.com/result"),
		okResponse(),
	}}
	req := mustRequest(t, http.MethodPut, "https://api.example.com/jobs", vcr.BytesBody([]byte("binary")))

	_, err := New(inner).Send(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, inner.seen, 2)
	require.Equal(t, http.MethodGet, inner.seen[1].Method)
	require.Equal(t, vcr.BodyNone, inner.seen[1].Body.Kind())
	require.Equal(t, http.MethodPut, inner.seen[0].Method)
}

func TestSend_RedirectLimit(t *testing.T) {
	chain := func(redirects int) []*vcr.Response {
		var out []*vcr.Response
		for i := 1; i <= redirects; i++ {
			out = append(out, redirectTo(http.StatusFound, fmt.Sprintf("/hop/%d", i)))
		}
		return append(out, okResponse())
	}

	t.Run("Three redirects are followed", func(t *testing.T) {
		inner := &scriptedSender{responses: chain(3)}
		resp, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, inner.seen, 4)
	})

	t.Run("Four redirects are followed", func(t *testing.T) {
		inner := &scriptedSender{responses: chain(4)}
		resp, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, inner.seen, 5)

		_, tagged := inner.seen[0].Properties[vcr.RedirectCountKey]
		require.False(t, tagged)
		for i := 1; i < len(inner.seen); i++ {
			require.Equal(t, i, inner.seen[i].Properties[vcr.RedirectCountKey])
			require.Equal(t, fmt.Sprintf("https://example.com/hop/%d", i), inner.seen[i].URI())
		}
	})

	t.Run("Fifth redirect fails", func(t *testing.T) {
		inner := &scriptedSender{responses: chain(5)}
		_, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))

		var tooMany *TooManyRedirectsError
		require.ErrorAs(t, err, &tooMany)
		require.Equal(t, MaxRedirects, tooMany.Limit)
		require.Len(t, tooMany.Via, 5)
		require.Len(t, inner.seen, 5)
		require.Contains(t, err.Error(), "redirect limit exceeded")
	})
}

func TestSend_CrossHostCredentials(t *testing.T) {
	tests := []struct {
		name     string
		location string
		keep     bool
	}{
		{"Different host strips credentials", "https://b.example.com/file", false},
		{"Same host keeps credentials", "https://a.example.com/other/path", true},
		{"Host comparison ignores case", "https://A.EXAMPLE.COM/other", true},
		{"Relative location keeps credentials", "/relative", true},
		{"Different port on same host keeps credentials", "https://a.example.com:8443/x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := &scriptedSender{responses: []*vcr.Response{
				redirectTo(http.StatusFound, tt.location),
				okResponse(),
			}}
			req := mustRequest(t, http.MethodGet, "https://a.example.com/start", vcr.NoBody())
			req.Header.Set("Authorization", "token secret")
			req.Header.Set("Cookie", "session=1")
			req.Header.Set("Accept", "application/json")

			_, err := New(inner).Send(context.Background(), req)
			require.NoError(t, err)
			require.Len(t, inner.seen, 2)

			resent := inner.seen[1].Header
			if tt.keep {
				require.Equal(t, "token secret", resent.Get("Authorization"))
				require.Equal(t, "session=1", resent.Get("Cookie"))
			} else {
				require.Empty(t, resent.Get("Authorization"))
				require.Empty(t, resent.Get("Cookie"))
			}
			require.Equal(t, "application/json", resent.Get("Accept"))
			require.Equal(t, "token secret", req.Header.Get("Authorization"))
		})
	}
}

func TestSend_DoesNotMutateRequest(t *testing.T) {
	inner := &scriptedSender{responses: []*vcr.Response{
		redirectTo(http.StatusSeeOther, "https://b.example.com/next"),
		okResponse(),
	}}
	req := mustRequest(t, http.MethodPost, "https://a.example.com/start", vcr.TextBody("x", ""))
	req.Header.Set("Authorization", "token secret")

	_, err := New(inner).Send(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "https://a.example.com/start", req.URI())
	require.Equal(t, "x", bodyText(t, req.Body))
	require.Equal(t, "token secret", req.Header.Get("Authorization"))
	require.NotContains(t, req.Properties, vcr.RedirectCountKey)
}

type trackingReader struct {
	io.Reader
	closed bool
}

func (r *trackingReader) Close() error {
	r.closed = true
	return nil
}

func TestSend_StreamBodyIsResent(t *testing.T) {
	inner := &scriptedSender{responses: []*vcr.Response{
		redirectTo(http.StatusTemporaryRedirect, "/upload/2"),
		okResponse(),
	}}
	stream := &trackingReader{Reader: strings.NewReader("chunked data")}
	req := mustRequest(t, http.MethodPost, "https://uploads.example.com/upload/1", vcr.StreamBody(stream))

	_, err := New(inner).Send(context.Background(), req)
	require.NoError(t, err)
	require.True(t, stream.closed)
	require.Len(t, inner.seen, 2)
	require.Equal(t, "chunked data", bodyText(t, inner.seen[0].Body))
	require.Equal(t, "chunked data", bodyText(t, inner.seen[1].Body))
}

func TestSend_NotFollowed(t *testing.T) {
	t.Run("Location on a non-redirect status", func(t *testing.T) {
		created := &vcr.Response{StatusCode: http.StatusCreated, Header: http.Header{"Location": {"/repos/1"}}}
		inner := &scriptedSender{responses: []*vcr.Response{created}}

		resp, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodPost, "https://example.com/repos", vcr.NoBody()))
		require.NoError(t, err)
		require.Same(t, created, resp)
		require.Len(t, inner.seen, 1)
	})

	t.Run("Redirect status without Location", func(t *testing.T) {
		moved := &vcr.Response{StatusCode: http.StatusMovedPermanently, Header: http.Header{}}
		inner := &scriptedSender{responses: []*vcr.Response{moved}}

		resp, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))
		require.NoError(t, err)
		require.Same(t, moved, resp)
	})
}

func TestSend_InnerErrorPropagates(t *testing.T) {
	failure := errors.New("connection reset")
	calls := 0
	inner := vcr.SenderFunc(func(context.Context, *vcr.Request) (*vcr.Response, error) {
		calls++
		return nil, failure
	})

	_, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))
	require.ErrorIs(t, err, failure)
	require.Equal(t, 1, calls)
}

func TestSend_Timeout(t *testing.T) {
	t.Run("Deadline shared by every hop", func(t *testing.T) {
		inner := &scriptedSender{responses: []*vcr.Response{
			redirectTo(http.StatusFound, "/a"),
			redirectTo(http.StatusFound, "/b"),
			okResponse(),
		}}
		req := mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody())
		req.Timeout = time.Minute

		_, err := New(inner).Send(context.Background(), req)
		require.NoError(t, err)
		require.Len(t, inner.deadlines, 3)
		for _, d := range inner.deadlines {
			require.Equal(t, inner.deadlines[0], d)
		}
	})

	t.Run("No deadline without timeout", func(t *testing.T) {
		inner := &scriptedSender{responses: []*vcr.Response{okResponse()}}
		_, err := New(inner).Send(context.Background(), mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody()))
		require.NoError(t, err)
		require.Empty(t, inner.deadlines)
	})

	t.Run("Timeout fires", func(t *testing.T) {
		inner := vcr.SenderFunc(func(ctx context.Context, _ *vcr.Request) (*vcr.Response, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		req := mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody())
		req.Timeout = 10 * time.Millisecond

		_, err := New(inner).Send(context.Background(), req)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Caller cancellation", func(t *testing.T) {
		inner := &scriptedSender{responses: []*vcr.Response{okResponse()}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		req := mustRequest(t, http.MethodGet, "https://example.com/", vcr.NoBody())
		req.Timeout = time.Minute
		_, err := New(inner).Send(ctx, req)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestResolveRedirectLocation(t *testing.T) {
	base := mustRequest(t, http.MethodGet, "https://example.com/a/b?x=1", vcr.NoBody()).URL

	for location, want := range map[string]string{
		"https://other.example.com/c": "https://other.example.com/c",
		"/root":                       "https://example.com/root",
		"sibling":                     "https://example.com/a/sibling",
		"?page=2":                     "https://example.com/a/b?page=2",
	} {
		got, err := resolveRedirectLocation(base, location)
		require.NoError(t, err)
		require.Equal(t, want, got.String(), location)
	}

	_, err := resolveRedirectLocation(base, "http://[::1")
	require.Error(t, err)
}
