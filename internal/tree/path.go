package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Path returns the positional path of n from its document node, for example
// "/*[1]/*[3]/@xlink:href" or "/*[1]/text()[2]". Positions are 1-based and count
// only siblings of the same kind. Ignorable whitespace is not counted, so a path
// taken on a tree parsed with PreserveSpace resolves on the same text parsed
// without it.
func Path(n *xmlquery.Node) (string, error) {
	if n == nil {
		return "", fmt.Errorf("path of nil node")
	}
	if Ignorable(n) {
		return "", fmt.Errorf("path of ignorable whitespace")
	}
	var segments []string
	if n.Type == xmlquery.AttributeNode {
		if n.Parent == nil || n.Parent.Type != xmlquery.ElementNode {
			return "", fmt.Errorf("attribute %s has no owner element", QName(n))
		}
		segments = append(segments, "@"+QName(n))
		n = n.Parent
	}
	for ; n.Parent != nil; n = n.Parent {
		step, ok := stepKind(n.Type)
		if !ok {
			return "", fmt.Errorf("node type %d has no path", n.Type)
		}
		segments = append(segments, fmt.Sprintf("%s[%d]", step, position(n)))
	}
	if n.Type != xmlquery.DocumentNode {
		return "", fmt.Errorf("node is not attached to a document")
	}
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String(), nil
}

// Resolve returns the node at path in doc. Attribute steps yield a detached
// attribute node built by AttributeNode.
func Resolve(doc *xmlquery.Node, path string) (*xmlquery.Node, error) {
	if doc == nil || doc.Type != xmlquery.DocumentNode {
		return nil, fmt.Errorf("resolve %s: not a document node", path)
	}
	if !strings.HasPrefix(path, "/") || path == "/" {
		return nil, fmt.Errorf("resolve %s: path must be absolute", path)
	}
	n := doc
	for step := range strings.SplitSeq(path[1:], "/") {
		if name, ok := strings.CutPrefix(step, "@"); ok {
			if n.Type != xmlquery.ElementNode {
				return nil, fmt.Errorf("resolve %s: attribute step on non-element", path)
			}
			attr, found := findAttr(n, name)
			if !found {
				return nil, fmt.Errorf("resolve %s: attribute %s not found", path, name)
			}
			return AttributeNode(n, attr), nil
		}
		kind, pos, err := parseStep(step)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", path, err)
		}
		child := nthChild(n, kind, pos)
		if child == nil {
			return nil, fmt.Errorf("resolve %s: step %s not found", path, step)
		}
		n = child
	}
	return n, nil
}

func stepKind(t xmlquery.NodeType) (string, bool) {
	switch t {
	case xmlquery.ElementNode:
		return "*", true
	case xmlquery.TextNode, xmlquery.CharDataNode:
		return "text()", true
	case xmlquery.CommentNode:
		return "comment()", true
	default:
		return "", false
	}
}

func position(n *xmlquery.Node) int {
	kind, _ := stepKind(n.Type)
	pos := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if k, ok := stepKind(s.Type); ok && k == kind && !Ignorable(s) {
			pos++
		}
	}
	return pos
}

func parseStep(step string) (string, int, error) {
	open := strings.IndexByte(step, '[')
	if open <= 0 || !strings.HasSuffix(step, "]") {
		return "", 0, fmt.Errorf("malformed step %q", step)
	}
	kind := step[:open]
	if kind != "*" && kind != "text()" && kind != "comment()" {
		return "", 0, fmt.Errorf("unsupported step %q", step)
	}
	pos, err := strconv.Atoi(step[open+1 : len(step)-1])
	if err != nil || pos < 1 {
		return "", 0, fmt.Errorf("malformed position in step %q", step)
	}
	return kind, pos, nil
}

func nthChild(n *xmlquery.Node, kind string, pos int) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if k, ok := stepKind(c.Type); ok && k == kind && !Ignorable(c) {
			pos--
			if pos == 0 {
				return c
			}
		}
	}
	return nil
}

func findAttr(el *xmlquery.Node, qname string) (xmlquery.Attr, bool) {
	prefix, local, found := strings.Cut(qname, ":")
	if !found {
		prefix, local = "", qname
	}
	for _, attr := range el.Attr {
		if attr.Name.Space == prefix && attr.Name.Local == local {
			return attr, true
		}
	}
	return xmlquery.Attr{}, false
}
