package vcr

import "fmt"

// NoInteractionError is returned by a Replayer in Playback mode when the next
// recorded interaction does not match the request.
type NoInteractionError struct {
	Request *Request
}

// Error implements the error interface.
func (e *NoInteractionError) Error() string {
	if e.Request == nil {
		return "vcr: no recorded interaction"
	}
	return fmt.Sprintf("vcr: no recorded interaction for %s %s", e.Request.Method, e.Request.URI())
}

// CassetteError is returned when a cassette cannot be read from or written
// to disk.
type CassetteError struct {
	// Op is "load" or "flush".
	Op   string
	Path string
	Err  error
}

func (e *CassetteError) Error() string {
	return fmt.Sprintf("vcr: %s cassette %s: %v", e.Op, e.Path, e.Err)
}

func (e *CassetteError) Unwrap() error { return e.Err }
