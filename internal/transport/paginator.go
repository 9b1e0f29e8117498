package transport

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
)

// MaxPages caps a Link-header pagination walk. This prevents infinite loops
// from malformed Link headers that always advertise a next page.
const MaxPages = 1000

// linkNextPattern matches the "next" relation in an RFC 5988 Link header.
// The rel value may or may not be quoted.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// NextLink extracts the next-page URL from a Link header, if present.
func NextLink(header http.Header) (string, bool) {
	link := header.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// EachPage walks Link-header pagination, calling fn for every page until no
// next relation remains or fn returns an error. After the first page the
// absolute next URL is followed verbatim; the original body and query are
// dropped since the server embedded them in the link.
func (e *Executor) EachPage(ctx context.Context, req Request, fn func(*Result) error) error {
	cur := req
	for page := 1; page <= MaxPages; page++ {
		res, err := e.Do(ctx, cur)
		if err != nil {
			return err
		}
		if err := fn(res); err != nil {
			return err
		}

		next, ok := NextLink(res.Header)
		if !ok {
			return nil
		}
		cur = Request{Method: req.Method, Path: next, Header: req.Header}
	}
	return fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
}
