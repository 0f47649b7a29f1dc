package vcr

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// A Filter modifies a copy of the request and response before they are
// recorded. Filters never affect what the caller receives.
//
// The primary purpose is to keep credentials out of cassette files.
type Filter func(req *Request, resp *Response)

// RemoveRequestHeader removes a header with the given name from the recorded
// request.
func RemoveRequestHeader(name string) Filter {
	return func(req *Request, _ *Response) {
		req.Header.Del(name)
	}
}

// RemoveResponseHeader removes a header with the given name from the recorded
// response.
func RemoveResponseHeader(name string) Filter {
	return func(_ *Request, resp *Response) {
		resp.Header.Del(name)
	}
}

// Cassette holds the recorded interactions of one test session.
//
// Recorded interactions are replayed strictly in order: each lookup inspects
// only the entry at the cursor, and the cursor never moves backwards. Every
// interaction served or newly observed during the session is collected and
// written back by Flush, replacing the file.
//
// A Cassette performs no I/O until first used. It must be owned by a single
// goroutine; it does no locking.
type Cassette struct {
	// Matcher compares the request with the entry at the cursor. If nil,
	// DefaultMatcher is used.
	Matcher Matcher

	// Filters are applied, in order, to every newly stored interaction.
	Filters []Filter

	path    string
	loaded  bool
	loadErr error
	cursor  int
	cached  []Interaction
	stored  []Interaction
}

// NewCassette returns a cassette backed by the file at path.
func NewCassette(path string, filters ...Filter) *Cassette {
	return &Cassette{path: path, Filters: filters}
}

// Path returns the backing file path.
func (c *Cassette) Path() string { return c.path }

func (c *Cassette) load() error {
	if c.loaded {
		return c.loadErr
	}
	c.loaded = true
	c.stored = nil

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.loadErr = &CassetteError{Op: "load", Path: c.path, Err: err}
		return c.loadErr
	}
	var f cassetteFile
	if err := json.Unmarshal(data, &f); err != nil {
		c.loadErr = &CassetteError{Op: "load", Path: c.path, Err: err}
		return c.loadErr
	}
	c.cached = f.Interactions
	return nil
}

// FindCachedResponse looks up the recorded interaction at the cursor.
//
// If the cursor is past the last recorded interaction, it reports a miss
// without changing any state. Otherwise the cursor advances by one whether or
// not the entry matches. A matching entry is carried forward into the stored
// interactions and its response returned; a non-matching entry is dropped.
func (c *Cassette) FindCachedResponse(req *Request) (*Response, bool, error) {
	if err := c.load(); err != nil {
		return nil, false, err
	}
	if c.cursor < 0 || c.cursor >= len(c.cached) {
		return nil, false, nil
	}
	entry := c.cached[c.cursor]
	c.cursor++

	m := c.Matcher
	if m == nil {
		m = DefaultMatcher
	}
	if !m.Match(entry, req) {
		return nil, false, nil
	}
	resp, err := entry.Response()
	if err != nil {
		return nil, false, &CassetteError{Op: "load", Path: c.path, Err: err}
	}
	c.stored = append(c.stored, entry)
	return resp, true, nil
}

// StoreCachedResponse records a live request and its response.
func (c *Cassette) StoreCachedResponse(req *Request, resp *Response) error {
	if err := c.load(); err != nil {
		return err
	}
	req, resp, err := c.filtered(req, resp)
	if err != nil {
		return err
	}
	entry, err := NewInteraction(req, resp)
	if err != nil {
		return err
	}
	c.stored = append(c.stored, entry)
	return nil
}

func (c *Cassette) filtered(req *Request, resp *Response) (*Request, *Response, error) {
	if len(c.Filters) == 0 {
		return req, resp, nil
	}
	reqCopy, err := req.Clone()
	if err != nil {
		return nil, nil, err
	}
	respCopy := *resp
	respCopy.Header = resp.Header.Clone()
	if respCopy.Header == nil {
		respCopy.Header = make(map[string][]string)
	}
	for _, apply := range c.Filters {
		apply(reqCopy, &respCopy)
	}
	return reqCopy, &respCopy, nil
}

// Stored returns the interactions collected so far in this session.
func (c *Cassette) Stored() []Interaction {
	out := make([]Interaction, len(c.stored))
	copy(out, c.stored)
	return out
}

// Flush writes every stored interaction to the backing file, replacing its
// contents. Missing parent directories are created. Flushing twice without
// further activity writes the same bytes.
func (c *Cassette) Flush() error {
	if err := c.load(); err != nil {
		return err
	}
	f := cassetteFile{Interactions: make([]Interaction, 0, len(c.stored))}
	f.Interactions = append(f.Interactions, c.stored...)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return &CassetteError{Op: "flush", Path: c.path, Err: err}
	}
	if err := writeFileAtomic(c.path, bytes.TrimSuffix(buf.Bytes(), []byte("\n"))); err != nil {
		return &CassetteError{Op: "flush", Path: c.path, Err: err}
	}
	return nil
}

// writeFileAtomic writes to a temporary file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(f.Name(), 0644)
	}
	if err == nil {
		err = os.Rename(f.Name(), path)
	}
	if err != nil {
		os.Remove(f.Name())
	}
	return err
}
