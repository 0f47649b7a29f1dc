// Package redirect provides a vcr.Sender that follows HTTP redirects.
//
// The Transport wraps any inner vcr.Sender, live or replaying:
//
//	live := vcr.NewHTTPSender(nil)
//	t := redirect.New(live)
//	resp, err := t.Send(ctx, req)
//
// # Redirect Handling
//
// Responses with status 301, 302, 303, 307 or 308 and a Location header are
// followed. A 303 is resent as a GET without a body; every other status keeps
// the original method and body. At most four redirects are followed per
// request; the next one fails with TooManyRedirectsError. The limit is fixed.
//
// When a redirect leaves the host, credential headers (Authorization, Cookie
// and friends) are dropped from the resent request.
//
// # Cancellation
//
// A non-zero vcr.Request.Timeout is combined with the caller's context once
// per Send, so the deadline covers the whole redirect chain. Context errors
// and errors from the inner Sender are returned unmodified.
//
// # Thread Safety
//
// The Transport holds no per-request state and is safe for concurrent use
// if its inner Sender is. Hops of one Send are issued strictly in order.
package redirect
