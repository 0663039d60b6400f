// Package namespace maps namespace prefixes to URIs and stamps the matching
// declarations onto elements.
package namespace

import (
	"encoding/xml"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Well-known namespaces.
const (
	XMLNamespace   = "http://www.w3.org/XML/1998/namespace"
	XMLNSNamespace = "http://www.w3.org/2000/xmlns/"
	XSINamespace   = "http://www.w3.org/2001/XMLSchema-instance"
)

const xmlnsPrefix = "xmlns"

// Registry maps prefixes to namespace URIs and holds the default namespace.
// The zero value is an empty registry with no default namespace.
type Registry struct {
	prefixes   map[string]string
	defaultURI string
}

// New returns a registry with the given default namespace and prefix bindings.
func New(defaultURI string, prefixes map[string]string) (*Registry, error) {
	r := &Registry{defaultURI: defaultURI, prefixes: make(map[string]string, len(prefixes))}
	for prefix, uri := range prefixes {
		if err := r.Add(prefix, uri); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNew is like New but panics on an invalid binding.
func MustNew(defaultURI string, prefixes map[string]string) *Registry {
	r, err := New(defaultURI, prefixes)
	if err != nil {
		panic(err)
	}
	return r
}

// Add binds prefix to uri, replacing an existing binding.
func (r *Registry) Add(prefix, uri string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("namespace prefix for %q is empty", uri)
	case prefix == xmlnsPrefix:
		return fmt.Errorf("namespace prefix %q is reserved", prefix)
	case prefix == "xml" && uri != XMLNamespace:
		return fmt.Errorf("namespace prefix %q is reserved", prefix)
	case strings.ContainsAny(prefix, ": \t\r\n"):
		return fmt.Errorf("namespace prefix %q is not an NCName", prefix)
	case uri == "":
		return fmt.Errorf("namespace prefix %q has an empty URI", prefix)
	}
	if r.prefixes == nil {
		r.prefixes = make(map[string]string)
	}
	r.prefixes[prefix] = uri
	return nil
}

// DefaultURI returns the default namespace URI.
func (r *Registry) DefaultURI() string {
	if r == nil {
		return ""
	}
	return r.defaultURI
}

// URIFor returns the URI bound to prefix. The empty prefix resolves to the default URI.
func (r *Registry) URIFor(prefix string) (string, bool) {
	if r == nil {
		return "", false
	}
	if prefix == "" {
		return r.defaultURI, r.defaultURI != ""
	}
	if prefix == "xml" {
		return XMLNamespace, true
	}
	uri, ok := r.prefixes[prefix]
	return uri, ok
}

// PrefixFor returns the first prefix, in sorted order, bound to uri.
func (r *Registry) PrefixFor(uri string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, prefix := range r.sortedPrefixes() {
		if r.prefixes[prefix] == uri {
			return prefix, true
		}
	}
	return "", false
}

// Prefixes returns a copy of the prefix bindings.
func (r *Registry) Prefixes() map[string]string {
	if r == nil || r.prefixes == nil {
		return map[string]string{}
	}
	return maps.Clone(r.prefixes)
}

// Stamp adds the registry's namespace declarations to el. Declarations that el
// already carries are left untouched, so stamping is idempotent.
func (r *Registry) Stamp(el *xmlquery.Node) {
	if r == nil || el == nil || el.Type != xmlquery.ElementNode {
		return
	}
	if r.defaultURI != "" && !hasDecl(el, "") {
		el.Attr = append(el.Attr, xmlquery.Attr{
			Name:  xmlName("", xmlnsPrefix),
			Value: r.defaultURI,
		})
	}
	for _, prefix := range r.sortedPrefixes() {
		if hasDecl(el, prefix) {
			continue
		}
		el.Attr = append(el.Attr, xmlquery.Attr{
			Name:         xmlName(xmlnsPrefix, prefix),
			Value:        r.prefixes[prefix],
			NamespaceURI: xmlnsPrefix,
		})
	}
}

// Declarations returns the declarations Stamp would add to an empty element,
// keyed by attribute name ("xmlns" or "xmlns:prefix").
func (r *Registry) Declarations() map[string]string {
	decls := make(map[string]string)
	if r == nil {
		return decls
	}
	if r.defaultURI != "" {
		decls[xmlnsPrefix] = r.defaultURI
	}
	for prefix, uri := range r.prefixes {
		decls[xmlnsPrefix+":"+prefix] = uri
	}
	return decls
}

func (r *Registry) sortedPrefixes() []string {
	return slices.Sorted(maps.Keys(r.prefixes))
}

func hasDecl(el *xmlquery.Node, prefix string) bool {
	for _, attr := range el.Attr {
		if prefix == "" && attr.Name.Space == "" && attr.Name.Local == xmlnsPrefix {
			return true
		}
		if prefix != "" && attr.Name.Space == xmlnsPrefix && attr.Name.Local == prefix {
			return true
		}
	}
	return false
}

func xmlName(space, local string) xml.Name {
	return xml.Name{Space: space, Local: local}
}
