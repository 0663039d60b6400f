package xpathq

import (
	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/jacoelho/xmldoc/internal/tree"
)

// navigator walks an xmlquery tree for the xpath package. Unlike
// xmlquery.NodeNavigator it is always rooted at the document node, so absolute
// paths evaluated from a context node still start at the document. Declarations,
// processing instructions and namespace declarations are not visible.
type navigator struct {
	root *xmlquery.Node
	curr *xmlquery.Node
	attr int
}

var _ xpath.NodeNavigator = (*navigator)(nil)

func newNavigator(root, curr *xmlquery.Node) *navigator {
	return &navigator{root: root, curr: curr, attr: -1}
}

// node returns the current node. Attributes are returned as detached attribute nodes.
func (n *navigator) node() *xmlquery.Node {
	if n.attr >= 0 {
		return tree.AttributeNode(n.curr, n.curr.Attr[n.attr])
	}
	return n.curr
}

func (n *navigator) NodeType() xpath.NodeType {
	if n.attr >= 0 {
		return xpath.AttributeNode
	}
	switch n.curr.Type {
	case xmlquery.DocumentNode:
		return xpath.RootNode
	case xmlquery.ElementNode:
		return xpath.ElementNode
	case xmlquery.CommentNode:
		return xpath.CommentNode
	default:
		return xpath.TextNode
	}
}

func (n *navigator) LocalName() string {
	if n.attr >= 0 {
		return n.curr.Attr[n.attr].Name.Local
	}
	return n.curr.Data
}

func (n *navigator) Prefix() string {
	if n.attr >= 0 {
		return n.curr.Attr[n.attr].Name.Space
	}
	return n.curr.Prefix
}

func (n *navigator) NamespaceURL() string {
	if n.attr >= 0 {
		return n.curr.Attr[n.attr].NamespaceURI
	}
	return n.curr.NamespaceURI
}

func (n *navigator) Value() string {
	if n.attr >= 0 {
		return n.curr.Attr[n.attr].Value
	}
	switch n.curr.Type {
	case xmlquery.DocumentNode, xmlquery.ElementNode:
		return n.curr.InnerText()
	default:
		return n.curr.Data
	}
}

func (n *navigator) Copy() xpath.NodeNavigator {
	c := *n
	return &c
}

func (n *navigator) MoveToRoot() {
	n.curr = n.root
	n.attr = -1
}

func (n *navigator) MoveToParent() bool {
	if n.attr >= 0 {
		n.attr = -1
		return true
	}
	if n.curr.Parent == nil || n.curr == n.root {
		return false
	}
	n.curr = n.curr.Parent
	return true
}

func (n *navigator) MoveToNextAttribute() bool {
	if n.curr.Type != xmlquery.ElementNode {
		return false
	}
	for i := n.attr + 1; i < len(n.curr.Attr); i++ {
		if !tree.IsNamespaceDecl(n.curr.Attr[i]) {
			n.attr = i
			return true
		}
	}
	return false
}

func (n *navigator) MoveToChild() bool {
	if n.attr >= 0 {
		return false
	}
	for c := n.curr.FirstChild; c != nil; c = c.NextSibling {
		if visible(c) {
			n.curr = c
			return true
		}
	}
	return false
}

func (n *navigator) MoveToFirst() bool {
	if n.attr >= 0 || n.curr.Parent == nil {
		return false
	}
	for c := n.curr.Parent.FirstChild; c != nil && c != n.curr; c = c.NextSibling {
		if visible(c) {
			n.curr = c
			return true
		}
	}
	return false
}

func (n *navigator) MoveToNext() bool {
	if n.attr >= 0 {
		return false
	}
	for c := n.curr.NextSibling; c != nil; c = c.NextSibling {
		if visible(c) {
			n.curr = c
			return true
		}
	}
	return false
}

func (n *navigator) MoveToPrevious() bool {
	if n.attr >= 0 {
		return false
	}
	for c := n.curr.PrevSibling; c != nil; c = c.PrevSibling {
		if visible(c) {
			n.curr = c
			return true
		}
	}
	return false
}

func (n *navigator) MoveTo(other xpath.NodeNavigator) bool {
	o, ok := other.(*navigator)
	if !ok || o.root != n.root {
		return false
	}
	n.curr = o.curr
	n.attr = o.attr
	return true
}

func (n *navigator) String() string {
	return n.Value()
}

func visible(n *xmlquery.Node) bool {
	switch n.Type {
	case xmlquery.ElementNode, xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.CommentNode:
		return true
	default:
		return false
	}
}
