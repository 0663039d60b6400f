package tree

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/antchfx/xmlquery"
)

// NewDocument returns a document holding an XML declaration and a single empty
// element named name in namespace uri.
func NewDocument(name, uri string) (*xmlquery.Node, error) {
	prefix, local, err := SplitQName(name)
	if err != nil {
		return nil, err
	}
	doc := &xmlquery.Node{Type: xmlquery.DocumentNode}
	xmlquery.AddChild(doc, &xmlquery.Node{
		Type: xmlquery.DeclarationNode,
		Data: "xml",
		Attr: []xmlquery.Attr{{Name: xml.Name{Local: "version"}, Value: "1.0"}},
	})
	xmlquery.AddChild(doc, &xmlquery.Node{
		Type:         xmlquery.ElementNode,
		Data:         local,
		Prefix:       prefix,
		NamespaceURI: uri,
	})
	return doc, nil
}

// DocumentElement returns the first element child of doc.
func DocumentElement(doc *xmlquery.Node) *xmlquery.Node {
	if doc == nil {
		return nil
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

// Contains reports whether n belongs to the tree rooted at doc.
func Contains(doc, n *xmlquery.Node) bool {
	return doc != nil && n != nil && xmlquery.GetRoot(n) == doc
}

// QName returns the prefixed name of an element or attribute node.
func QName(n *xmlquery.Node) string {
	if n.Prefix == "" {
		return n.Data
	}
	return n.Prefix + ":" + n.Data
}

// SplitQName splits name into prefix and local part.
func SplitQName(name string) (prefix, local string, err error) {
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		prefix, local = "", name
	}
	if found && !isNCName(prefix) {
		return "", "", fmt.Errorf("invalid qualified name %q", name)
	}
	if !isNCName(local) {
		return "", "", fmt.Errorf("invalid qualified name %q", name)
	}
	return prefix, local, nil
}

// AttributeNode returns a detached attribute node for attr of el. The node's
// parent is el so that it resolves to el's tree.
func AttributeNode(el *xmlquery.Node, attr xmlquery.Attr) *xmlquery.Node {
	text := &xmlquery.Node{Type: xmlquery.TextNode, Data: attr.Value}
	n := &xmlquery.Node{
		Type:         xmlquery.AttributeNode,
		Parent:       el,
		Data:         attr.Name.Local,
		Prefix:       attr.Name.Space,
		NamespaceURI: attr.NamespaceURI,
		FirstChild:   text,
		LastChild:    text,
	}
	text.Parent = n
	return n
}

// IsNamespaceDecl reports whether attr is an xmlns declaration.
func IsNamespaceDecl(attr xmlquery.Attr) bool {
	return (attr.Name.Space == "" && attr.Name.Local == "xmlns") || attr.Name.Space == "xmlns"
}

// Format controls serialization.
type Format struct {
	// Indent is repeated once per nesting level. Empty disables pretty-printing.
	Indent string
}

// Write serializes doc as UTF-8 text, one top-level node per line.
func Write(w io.Writer, doc *xmlquery.Node, f Format) error {
	_, err := io.WriteString(w, String(doc, f))
	return err
}

// String serializes doc as UTF-8 text, one top-level node per line. A document
// without an XML declaration is written with a version 1.0 one.
//
// With an indent, element-only content is laid out one child per line. An
// element with character data children, or under xml:space="preserve", is
// written verbatim together with its subtree, so indenting never adds text to
// mixed content.
func String(doc *xmlquery.Node, f Format) string {
	var b strings.Builder
	if !hasDeclaration(doc) {
		b.WriteString(defaultDeclaration + "\n")
	}
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode && isBlank(c) {
			continue
		}
		if f.Indent != "" && c.Type == xmlquery.ElementNode {
			writeIndented(&b, c, f.Indent, 0)
		} else {
			b.WriteString(c.OutputXMLWithOptions(outputOptions...))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

const defaultDeclaration = `<?xml version="1.0"?>`

func hasDeclaration(doc *xmlquery.Node) bool {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.DeclarationNode && c.Data == "xml" {
			return true
		}
	}
	return false
}

var outputOptions = []xmlquery.OutputOption{
	xmlquery.WithOutputSelf(),
	xmlquery.WithEmptyTagSupport(),
	xmlquery.WithPreserveSpace(),
}

func writeIndented(b *strings.Builder, el *xmlquery.Node, indent string, level int) {
	if el.FirstChild == nil || hasText(el) || inPreserve(el) {
		b.WriteString(el.OutputXMLWithOptions(outputOptions...))
		return
	}
	name := QName(el)
	shallow := &xmlquery.Node{Type: xmlquery.ElementNode, Data: el.Data, Prefix: el.Prefix, Attr: el.Attr}
	b.WriteString(strings.TrimSuffix(shallow.OutputXMLWithOptions(xmlquery.WithOutputSelf()), "</"+name+">"))
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.TextNode {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(indent, level+1))
		if c.Type == xmlquery.ElementNode {
			writeIndented(b, c, indent, level+1)
		} else {
			b.WriteString(c.OutputXMLWithOptions(outputOptions...))
		}
	}
	b.WriteByte('\n')
	b.WriteString(strings.Repeat(indent, level))
	b.WriteString("</" + name + ">")
}

func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)):
		default:
			return false
		}
	}
	return true
}
