package redirect

import (
	"fmt"
	"strings"
)

// TooManyRedirectsError is returned when a request would need more redirects
// than the limit allows.
type TooManyRedirectsError struct {
	// Limit is the maximum number of redirects that are followed
	Limit int
	// Via lists the URLs requested so far, starting with the original one
	Via []string
}

// Error implements the error interface.
func (e *TooManyRedirectsError) Error() string {
	return fmt.Sprintf("redirect: redirect limit exceeded after %d redirects (limit: %d): %s",
		len(e.Via)-1, e.Limit, strings.Join(e.Via, " -> "))
}
