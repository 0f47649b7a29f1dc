package vcr

import (
	"context"
	"fmt"
	"log/slog"
)

// Replayer is a Sender that serves responses from a Cassette and records
// live traffic into it.
//
// The behavior depends on Mode:
//
//	Cache:     The entry at the cassette cursor is returned if it matches.
//	           Otherwise the request is sent by Sender and recorded.
//	Playback:  The entry at the cassette cursor is returned if it matches.
//	           Otherwise NoInteractionError is returned.
//	Record:    The request is always sent by Sender and recorded.
//
// Like its Cassette, a Replayer belongs to one test session and must not be
// used concurrently.
type Replayer struct {
	Cassette *Cassette
	Mode     Mode

	// Sender performs live requests. Required unless Mode is Playback.
	Sender Sender

	// Logger receives debug records for hits, misses and recordings. If nil,
	// slog.Default() is used.
	Logger *slog.Logger
}

var _ Sender = (*Replayer)(nil)

// NewReplayer returns a Replayer for the cassette at path.
func NewReplayer(path string, mode Mode, live Sender, filters ...Filter) *Replayer {
	return &Replayer{
		Cassette: NewCassette(path, filters...),
		Mode:     mode,
		Sender:   live,
	}
}

func (r *Replayer) logger() *slog.Logger {
	l := r.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "vcr", "cassette", r.Cassette.Path())
}

// Send implements Sender.
func (r *Replayer) Send(ctx context.Context, req *Request) (*Response, error) {
	log := r.logger()

	if r.Mode == Cache || r.Mode == Playback {
		resp, ok, err := r.Cassette.FindCachedResponse(req)
		if err != nil {
			return nil, err
		}
		if ok {
			log.DebugContext(ctx, "cassette hit", "method", req.Method, "uri", req.URI())
			return resp, nil
		}
		log.DebugContext(ctx, "cassette miss", "method", req.Method, "uri", req.URI(), "mode", r.Mode)
		if r.Mode == Playback {
			return nil, &NoInteractionError{Request: req}
		}
	} else if r.Mode != Record {
		return nil, fmt.Errorf("vcr: unsupported mode %v", r.Mode)
	}

	if r.Sender == nil {
		return nil, fmt.Errorf("vcr: no live sender configured for mode %v", r.Mode)
	}
	if req.Body.Kind() == BodyStream {
		// The body is needed again for the recording.
		buffered, err := req.Clone()
		if err != nil {
			return nil, err
		}
		req = buffered
	}

	resp, err := r.Sender.Send(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.Cassette.StoreCachedResponse(req, resp); err != nil {
		return nil, err
	}
	log.DebugContext(ctx, "recorded interaction", "method", req.Method, "uri", req.URI(), "status", resp.StatusCode)
	return resp, nil
}

// Close flushes the cassette. Call it once at the end of the session.
func (r *Replayer) Close() error {
	return r.Cassette.Flush()
}
