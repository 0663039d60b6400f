// Package tree parses, synthesizes and serializes xmlquery document trees.
package tree

import (
	"bytes"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/net/html/charset"
)

// Limits bounds the size of parsed documents. Zero values disable a limit.
type Limits struct {
	MaxDepth     int
	MaxAttrs     int
	MaxInputSize int64
}

// ParseOptions configures Parse.
type ParseOptions struct {
	Limits Limits
	// PreserveSpace keeps whitespace-only text nodes inside the document element.
	// Elements marked xml:space="preserve" keep them regardless.
	PreserveSpace bool
}

// LimitError reports a document that exceeds a parse limit.
type LimitError struct {
	Limit string
	Max   int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("xml %s exceeds limit %d", e.Limit, e.Max)
}

// Parse reads an XML document into a tree rooted at a document node.
func Parse(r io.Reader, opts ParseOptions) (*xmlquery.Node, error) {
	data, err := readLimited(r, opts.Limits.MaxInputSize)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(data), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict:        true,
			CharsetReader: charset.NewReaderLabel,
		},
		WithLineNumbers: true,
	})
	if err != nil {
		return nil, err
	}
	if err := checkProlog(doc); err != nil {
		return nil, err
	}
	if err := checkLimits(doc, opts.Limits, 0); err != nil {
		return nil, err
	}
	stripWhitespace(doc, opts.PreserveSpace)
	normalizeDeclaration(doc)
	return doc, nil
}

// ParseString is Parse over a string.
func ParseString(s string, opts ParseOptions) (*xmlquery.Node, error) {
	return Parse(strings.NewReader(s), opts)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read xml: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read xml: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, &LimitError{Limit: "input size", Max: limit}
	}
	return data, nil
}

// checkProlog rejects trees the decoder accepts but that are not a single
// well-formed document: zero or several document elements, or character data
// outside the document element.
func checkProlog(doc *xmlquery.Node) error {
	elements := 0
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			elements++
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if c.Type == xmlquery.CharDataNode || strings.TrimSpace(c.Data) != "" {
				return fmt.Errorf("xml: character data outside the document element")
			}
		}
	}
	switch elements {
	case 0:
		return fmt.Errorf("xml: missing document element")
	case 1:
		return nil
	default:
		return fmt.Errorf("xml: %d document elements, want exactly one", elements)
	}
}

func checkLimits(n *xmlquery.Node, limits Limits, depth int) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if limits.MaxDepth > 0 && depth+1 > limits.MaxDepth {
			return &LimitError{Limit: "depth", Max: int64(limits.MaxDepth)}
		}
		if limits.MaxAttrs > 0 && len(c.Attr) > limits.MaxAttrs {
			return &LimitError{Limit: "attribute count", Max: int64(limits.MaxAttrs)}
		}
		if err := checkLimits(c, limits, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// stripWhitespace removes whitespace-only text nodes from element-only content.
// Text directly under the document node is always dropped; whitespace inside
// mixed content is data and is kept.
func stripWhitespace(n *xmlquery.Node, preserve bool) {
	mixed := n.Type == xmlquery.ElementNode && hasText(n)
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch c.Type {
		case xmlquery.TextNode:
			if isBlank(c) && (n.Type == xmlquery.DocumentNode || (!preserve && !mixed)) {
				xmlquery.RemoveFromTree(c)
			}
		case xmlquery.ElementNode:
			stripWhitespace(c, spacePreserved(c, preserve))
		}
		c = next
	}
}

// Ignorable reports whether n is whitespace-only text that parsing without
// PreserveSpace drops: blank text in element-only content outside
// xml:space="preserve", or any blank text at document level.
func Ignorable(n *xmlquery.Node) bool {
	if n == nil || n.Type != xmlquery.TextNode || !isBlank(n) {
		return false
	}
	p := n.Parent
	if p == nil || p.Type == xmlquery.DocumentNode {
		return true
	}
	return !hasText(p) && !inPreserve(p)
}

func isBlank(n *xmlquery.Node) bool {
	return strings.TrimSpace(n.Data) == ""
}

// hasText reports whether el has character data children, which makes its
// content mixed.
func hasText(el *xmlquery.Node) bool {
	for c := el.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.CharDataNode:
			return true
		case xmlquery.TextNode:
			if !isBlank(c) {
				return true
			}
		}
	}
	return false
}

func inPreserve(el *xmlquery.Node) bool {
	var chain []*xmlquery.Node
	for e := el; e != nil && e.Type == xmlquery.ElementNode; e = e.Parent {
		chain = append(chain, e)
	}
	preserve := false
	for _, e := range slices.Backward(chain) {
		preserve = spacePreserved(e, preserve)
	}
	return preserve
}

func spacePreserved(el *xmlquery.Node, inherited bool) bool {
	for _, attr := range el.Attr {
		if attr.Name.Space == "xml" && attr.Name.Local == "space" {
			switch attr.Value {
			case "preserve":
				return true
			case "default":
				return false
			}
		}
	}
	return inherited
}

// normalizeDeclaration rewrites the encoding pseudo-attribute: the decoder has
// already transcoded the input and trees are always written as UTF-8.
func normalizeDeclaration(doc *xmlquery.Node) {
	for c := doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.DeclarationNode || c.Data != "xml" {
			continue
		}
		for i := range c.Attr {
			if c.Attr[i].Name.Local == "encoding" {
				c.Attr[i].Value = "UTF-8"
			}
		}
	}
}
