package protocol

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"github.com/aretw0/ferry/pkg/domain"
)

// ParseRootDocument extracts the initial page embedded in a server-rendered
// HTML document. The page is read from the data-page attribute of the element
// with the given id (default "app"), or from a
// <script type="application/json" data-page="id"> block.
func ParseRootDocument(r io.Reader, id string) (*domain.Page, error) {
	if id == "" {
		id = defaultRootID
	}
	doc, err := html.Parse(io.LimitReader(r, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse root document: %w", err)
	}

	payload, ok := findPayload(doc, id)
	if !ok {
		return nil, fmt.Errorf("%w: no page found on root element %q", domain.ErrMalformedResponse, id)
	}
	return domain.ParsePage([]byte(payload))
}

func findPayload(n *html.Node, id string) (string, bool) {
	if n.Type == html.ElementNode {
		if attr(n, "id") == id {
			if v, ok := lookup(n, pageDataAttr); ok {
				return v, true
			}
		}
		if n.Data == "script" && attr(n, pageDataAttr) == id {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			return sb.String(), true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if v, ok := findPayload(c, id); ok {
			return v, true
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	v, _ := lookup(n, key)
	return v
}

func lookup(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// FetchRoot loads the root document with a plain, non-protocol GET and
// parses its embedded page.
func (c *Client) FetchRoot(ctx context.Context, rawURL, id string) (*domain.Page, error) {
	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build root request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: root document status %d", domain.ErrNetworkFailure, resp.StatusCode)
	}

	page, err := ParseRootDocument(resp.Body, id)
	if err != nil {
		return nil, err
	}
	if page.URL() == "" {
		page = page.WithURL(c.display(resp.Request.URL))
	}
	return page, nil
}
