// Package locator converts between the short resource identifiers the
// orchestrator hands to callers and the absolute references (hrefs) the
// control plane understands.
//
// An href is the endpoint URL, "/v", the API version and the identifier
// concatenated: "https://cp.example/v1.5" + "/vApp/vm-42".
package locator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownScheme is returned when neither the endpoint nor the href use a
// scheme the mapping knows how to reconcile.
var ErrUnknownScheme = errors.New("unknown href scheme")

// Endpoint describes the control plane a session talks to.
type Endpoint struct {
	URL        string
	APIVersion string
}

func (e Endpoint) prefix() string {
	return e.URL + "/v" + e.APIVersion
}

// ToHref returns the absolute reference for id.
func ToHref(ep Endpoint, id string) string {
	return ep.prefix() + id
}

// ToID strips the endpoint prefix from href.
//
// Hrefs issued by the control plane may use a different scheme than the
// configured endpoint. An https href against an http endpoint has a prefix one
// character longer, an http href against an https endpoint one shorter.
func ToID(ep Endpoint, href string) (string, error) {
	n := len(ep.prefix())

	switch {
	case hasScheme(href, "https") && hasScheme(ep.URL, "http"):
		n++
	case hasScheme(href, "http") && hasScheme(ep.URL, "https"):
		n--
	case hasScheme(href, "https") && hasScheme(ep.URL, "https"),
		hasScheme(href, "http") && hasScheme(ep.URL, "http"):
	default:
		return "", fmt.Errorf("%w: href %q against endpoint %q", ErrUnknownScheme, href, ep.URL)
	}

	if n > len(href) {
		return "", fmt.Errorf("href %q is shorter than endpoint prefix %q", href, ep.prefix())
	}
	return href[n:], nil
}

// hasScheme reports whether u uses exactly the given scheme.
func hasScheme(u, scheme string) bool {
	return strings.HasPrefix(strings.ToLower(u), scheme+"://")
}
