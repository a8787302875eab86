package davxml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// node is a namespace-agnostic XML element: only the local name survives
// decoding, never the prefix or namespace URI. Servers disagree wildly on
// how (or whether) they declare the DAV/CalDAV namespaces, so matching by
// local name only is the one strategy that works against all of them.
type node struct {
	Name     string
	Attrs    map[string]string
	Children []*node
	Text     string
}

func child(n *node, name string) *node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func collectText(n *node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(n.Text)
	for _, c := range n.Children {
		b.WriteString(collectText(c))
	}
	return strings.TrimSpace(b.String())
}

func parseNode(dec *xml.Decoder, start xml.StartElement) (*node, error) {
	n := &node{Name: start.Name.Local, Attrs: map[string]string{}}
	for _, a := range start.Attr {
		n.Attrs[a.Name.Local] = a.Value
	}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			c, err := parseNode(dec, t)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		case xml.CharData:
			n.Text += string(t)
		case xml.EndElement:
			return n, nil
		}
	}
}

// DavResponse is one <response> element of a multistatus document.
type DavResponse struct {
	Href       string
	StatusCode int // set when the response carries a top-level <status> instead of propstats

	presence map[string]bool
	props    map[string]*node
}

// Has reports whether name occurred in any propstat block for this
// response, regardless of that block's status.
func (r *DavResponse) Has(name string) bool {
	return r.presence[name]
}

// Text returns the concatenated text content of name's property element,
// empty if the property was absent or its propstat was not 2xx.
func (r *DavResponse) Text(name string) string {
	return collectText(r.props[name])
}

// HasChild reports whether name's property element has a direct child
// with the given local name — used for e.g. resourcetype>calendar checks.
func (r *DavResponse) HasChild(name, childLocal string) bool {
	p, ok := r.props[name]
	if !ok {
		return false
	}
	return child(p, childLocal) != nil
}

// ETag returns the getetag property with surrounding quotes stripped, or
// "" if absent.
func (r *DavResponse) ETag() string {
	return strings.Trim(r.Text("getetag"), `"`)
}

// CalendarData returns the calendar-data property's raw bytes. CDATA
// sections are already unwrapped by encoding/xml, so no special handling
// is needed here.
func (r *DavResponse) CalendarData() []byte {
	if t := r.Text("calendar-data"); t != "" {
		return []byte(t)
	}
	return nil
}

func parseStatusCode(status string) int {
	fields := strings.Fields(status)
	if len(fields) < 2 {
		return 0
	}
	code, _ := strconv.Atoi(fields[1])
	return code
}

func buildResponse(n *node) *DavResponse {
	r := &DavResponse{presence: map[string]bool{}, props: map[string]*node{}}
	for _, c := range n.Children {
		switch c.Name {
		case "href":
			if decoded, err := url.PathUnescape(strings.TrimSpace(c.Text)); err == nil {
				r.Href = decoded
			} else {
				r.Href = strings.TrimSpace(c.Text)
			}
		case "status":
			r.StatusCode = parseStatusCode(strings.TrimSpace(c.Text))
		case "propstat":
			prop := child(c, "prop")
			status := child(c, "status")
			code := parseStatusCode(strings.TrimSpace(collectText(status)))
			if prop == nil {
				continue
			}
			for _, p := range prop.Children {
				r.presence[p.Name] = true
				if code >= 200 && code < 300 {
					r.props[p.Name] = p
				}
			}
		}
	}
	return r
}

// Multistatus is the decoded result of a PROPFIND/REPORT response body.
type Multistatus struct {
	Responses []*DavResponse
	SyncToken string
}

// ParseMultistatus decodes a WebDAV <multistatus> document. It tolerates
// any namespace prefix (or none at all) since it matches purely on local
// element names, per the loose namespace discipline real CalDAV servers
// exhibit in practice.
func ParseMultistatus(data []byte) (*Multistatus, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("davxml: no multistatus element found")
		}
		if err != nil {
			return nil, fmt.Errorf("davxml: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "multistatus" {
			continue
		}
		root, err := parseNode(dec, se)
		if err != nil {
			return nil, fmt.Errorf("davxml: %w", err)
		}

		ms := &Multistatus{}
		for _, c := range root.Children {
			switch c.Name {
			case "response":
				ms.Responses = append(ms.Responses, buildResponse(c))
			case "sync-token":
				ms.SyncToken = strings.TrimSpace(c.Text)
			}
		}
		return ms, nil
	}
}
