// Package acl models RFC 3744 access control entries: parsing a standalone
// <acl> XML fragment (as returned by a PROPFIND for the DAV:acl property,
// or built directly from an ACL request body) into a list of Aces, and
// serializing Aces back into a request body.
//
// Grounded in the teacher's own ACL property shape
// (internal/dav/common/types.go's AclProp/Ace/Grant/Priv, and
// internal/acl's Effective privilege set), generalized from the teacher's
// fixed five-privilege read/write-props/write-content/bind/unbind subset to
// the full RFC 3744 privilege vocabulary and principal sum type the spec
// calls for, and re-grounded in pkg/davxml's namespace-agnostic parsing
// approach rather than encoding/xml struct tags (the same namespace-prefix
// variance problem the multistatus parser was built to avoid applies
// equally to a standalone <acl> fragment).
package acl

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Privilege is one DAV/CalDAV access control privilege (RFC 3744 §5.3,
// plus RFC 4791's calendar-specific ones are out of this package's scope —
// the spec's §4.7 list is the WebDAV core set).
type Privilege string

const (
	PrivRead                     Privilege = "read"
	PrivWrite                    Privilege = "write"
	PrivWriteProperties          Privilege = "write-properties"
	PrivWriteContent             Privilege = "write-content"
	PrivUnlock                   Privilege = "unlock"
	PrivReadACL                  Privilege = "read-acl"
	PrivReadCurrentUserPrivSet   Privilege = "read-current-user-privilege-set"
	PrivWriteACL                 Privilege = "write-acl"
	PrivBind                     Privilege = "bind"
	PrivUnbind                   Privilege = "unbind"
	PrivAll                      Privilege = "all"
)

// PrincipalKind discriminates the Principal sum type (RFC 3744 §5.5.1).
type PrincipalKind int

const (
	PrincipalHref PrincipalKind = iota
	PrincipalAll
	PrincipalAuthenticated
	PrincipalUnauthenticated
	PrincipalSelf
	PrincipalProperty
)

// Principal is the "who" side of an ACE: either a concrete href, one of
// the four special principal kinds, or a property-based principal (e.g.
// DAV:owner), named by the property's local name.
type Principal struct {
	Kind         PrincipalKind
	Href         string // meaningful only when Kind == PrincipalHref
	PropertyName string // meaningful only when Kind == PrincipalProperty
}

func (p Principal) String() string {
	switch p.Kind {
	case PrincipalHref:
		return p.Href
	case PrincipalAll:
		return "<all>"
	case PrincipalAuthenticated:
		return "<authenticated>"
	case PrincipalUnauthenticated:
		return "<unauthenticated>"
	case PrincipalSelf:
		return "<self>"
	case PrincipalProperty:
		return "<property:" + p.PropertyName + ">"
	default:
		return "<unknown>"
	}
}

// Ace is one access control entry: a principal plus the privileges granted
// and/or denied to it, and whether the server reports it as inherited from
// a parent collection (RFC 3744 §5.5.4's <inherited> element — present only
// on responses, never on a request).
type Ace struct {
	Principal  Principal
	Grant      []Privilege
	Deny       []Privilege
	Inherited  string // href of the collection it's inherited from, "" if not inherited
}

// node mirrors pkg/davxml's namespace-agnostic element: only local names
// survive, never the namespace prefix, for the same reason the multistatus
// parser works that way — real servers disagree on how they declare DAV:.
type node struct {
	Name     string
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

func hasChild(n *node, name string) bool {
	return child(n, name) != nil
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
	n := &node{Name: start.Name.Local}
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

// Parse decodes a standalone <acl> XML fragment (the body of a PROPFIND
// response's DAV:acl property, or the body of an ACL request) into an
// ordered list of Aces.
func Parse(data []byte) ([]Ace, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("acl: no acl element found")
		}
		if err != nil {
			return nil, fmt.Errorf("acl: %w", err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "acl" {
			continue
		}
		root, err := parseNode(dec, se)
		if err != nil {
			return nil, fmt.Errorf("acl: %w", err)
		}
		var aces []Ace
		for _, c := range root.Children {
			if c.Name != "ace" {
				continue
			}
			aces = append(aces, parseAce(c))
		}
		return aces, nil
	}
}

func parseAce(n *node) Ace {
	ace := Ace{}
	if p := child(n, "principal"); p != nil {
		ace.Principal = parsePrincipal(p)
	}
	if g := child(n, "grant"); g != nil {
		ace.Grant = parsePrivileges(g)
	}
	if dn := child(n, "deny"); dn != nil {
		ace.Deny = parsePrivileges(dn)
	}
	if inh := child(n, "inherited"); inh != nil {
		if h := child(inh, "href"); h != nil {
			ace.Inherited = strings.TrimSpace(h.Text)
		}
	}
	return ace
}

func parsePrincipal(n *node) Principal {
	switch {
	case hasChild(n, "href"):
		return Principal{Kind: PrincipalHref, Href: strings.TrimSpace(collectText(child(n, "href")))}
	case hasChild(n, "all"):
		return Principal{Kind: PrincipalAll}
	case hasChild(n, "authenticated"):
		return Principal{Kind: PrincipalAuthenticated}
	case hasChild(n, "unauthenticated"):
		return Principal{Kind: PrincipalUnauthenticated}
	case hasChild(n, "self"):
		return Principal{Kind: PrincipalSelf}
	case hasChild(n, "property"):
		prop := child(n, "property")
		if len(prop.Children) > 0 {
			return Principal{Kind: PrincipalProperty, PropertyName: prop.Children[0].Name}
		}
		return Principal{Kind: PrincipalProperty}
	default:
		return Principal{}
	}
}

// privilegeNames enumerates the privilege elements this package recognizes
// inside a <privilege> wrapper: the Privilege constants above, with PrivAll
// checked first.
var privilegeNames = []Privilege{
	PrivAll, PrivRead, PrivWrite, PrivWriteProperties, PrivWriteContent,
	PrivUnlock, PrivReadACL, PrivReadCurrentUserPrivSet, PrivWriteACL,
	PrivBind, PrivUnbind,
}

func parsePrivileges(n *node) []Privilege {
	var out []Privilege
	for _, priv := range n.Children {
		if priv.Name != "privilege" {
			continue
		}
		for _, candidate := range privilegeNames {
			if hasChild(priv, string(candidate)) {
				out = append(out, candidate)
				break
			}
		}
	}
	return out
}

const xmlHeader = `<?xml version="1.0" encoding="utf-8" ?>` + "\n"

func escapeText(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

func principalXML(p Principal) string {
	switch p.Kind {
	case PrincipalHref:
		return fmt.Sprintf(`<principal><href>%s</href></principal>`, escapeText(p.Href))
	case PrincipalAll:
		return `<principal><all/></principal>`
	case PrincipalAuthenticated:
		return `<principal><authenticated/></principal>`
	case PrincipalUnauthenticated:
		return `<principal><unauthenticated/></principal>`
	case PrincipalSelf:
		return `<principal><self/></principal>`
	case PrincipalProperty:
		return fmt.Sprintf(`<principal><property><%s/></property></principal>`, p.PropertyName)
	default:
		return `<principal><unauthenticated/></principal>`
	}
}

func privilegeSetXML(tag string, privs []Privilege) string {
	if len(privs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>", tag)
	for _, p := range privs {
		fmt.Fprintf(&b, `<privilege><%s/></privilege>`, string(p))
	}
	fmt.Fprintf(&b, "</%s>", tag)
	return b.String()
}

// Serialize builds a DAV:acl request body (the body of an ACL method call)
// from a list of Aces. Inherited entries are omitted: RFC 3744 §9.1
// forbids setting an ACE as inherited, that element only ever appears on
// a response describing the server's effective ACL.
func Serialize(aces []Ace) []byte {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<acl xmlns="DAV:">`)
	for _, ace := range aces {
		if ace.Inherited != "" {
			continue
		}
		b.WriteString(`<ace>`)
		b.WriteString(principalXML(ace.Principal))
		b.WriteString(privilegeSetXML("grant", ace.Grant))
		b.WriteString(privilegeSetXML("deny", ace.Deny))
		b.WriteString(`</ace>`)
	}
	b.WriteString(`</acl>`)
	return []byte(b.String())
}
