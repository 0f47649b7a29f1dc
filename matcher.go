package vcr

import "strings"

// Matcher decides whether a live request corresponds to the recorded
// interaction at the cassette cursor.
type Matcher interface {
	Match(recorded Interaction, req *Request) bool
}

// MatcherFunc adapts an ordinary function to the Matcher interface.
type MatcherFunc func(recorded Interaction, req *Request) bool

// Match calls f(recorded, req).
func (f MatcherFunc) Match(recorded Interaction, req *Request) bool { return f(recorded, req) }

// DefaultMatcher matches on method, compared case-insensitively, and on the
// exact request URI. Headers and bodies are not compared.
var DefaultMatcher Matcher = MatcherFunc(matchMethodAndURI)

func matchMethodAndURI(recorded Interaction, req *Request) bool {
	return strings.EqualFold(recorded.Method(), req.Method) && recorded.URI() == req.URI()
}
