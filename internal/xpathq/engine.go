// Package xpathq evaluates XPath 1.0 expressions over a document tree.
//
// The engine follows the convention of the XML toolkits it stands in for: a
// failed query yields a sentinel (ok == false) and failure details are reported
// to a diag.Reporter. Callers that need a single reliable verdict combine both
// signals.
package xpathq

import (
	"fmt"
	"maps"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jacoelho/xmldoc/diag"
	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/internal/tree"
	"github.com/jacoelho/xmldoc/namespace"
)

// DefaultCacheSize is the number of compiled expressions an engine keeps.
const DefaultCacheSize = 128

// Config configures an Engine.
type Config struct {
	// Namespaces binds prefixes used in expressions. Prefixes declared in the
	// document are added unless already bound.
	Namespaces map[string]string
	Reporter   diag.Reporter
	CacheSize  int
}

// Engine evaluates expressions against one document tree.
type Engine struct {
	doc        *xmlquery.Node
	namespaces map[string]string
	reporter   diag.Reporter
	cache      *lru.Cache[string, *xpath.Expr]
}

// New returns an engine bound to doc.
func New(doc *xmlquery.Node, cfg Config) (*Engine, error) {
	if doc == nil || doc.Type != xmlquery.DocumentNode {
		return nil, fmt.Errorf("xpath engine requires a document node")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *xpath.Expr](size)
	if err != nil {
		return nil, fmt.Errorf("create expression cache: %w", err)
	}
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = diag.Default
	}
	namespaces := declaredPrefixes(doc)
	maps.Copy(namespaces, cfg.Namespaces)
	return &Engine{
		doc:        doc,
		namespaces: namespaces,
		reporter:   reporter,
		cache:      cache,
	}, nil
}

// Document returns the tree the engine is bound to.
func (e *Engine) Document() *xmlquery.Node {
	return e.doc
}

// Select evaluates expr and returns the matched nodes in document order. A nil
// context evaluates against the document node. ok is false when the expression
// or context is unusable; the reason is reported. An expression that does not
// yield a node-set reports a warning and returns no nodes with ok set.
func (e *Engine) Select(expr string, context *xmlquery.Node) (nodes []*xmlquery.Node, ok bool) {
	result, ok := e.Evaluate(expr, context)
	if !ok {
		return nil, false
	}
	nodes, isNodeSet := result.([]*xmlquery.Node)
	if !isNodeSet {
		e.report(diag.LevelWarning, errors.ErrXPathNotNodeSet,
			fmt.Sprintf("expression evaluates to %s, not a node-set", typeName(result)), expr)
		return nil, true
	}
	return nodes, true
}

// Evaluate evaluates expr and returns a bool, float64, string or []*xmlquery.Node.
func (e *Engine) Evaluate(expr string, context *xmlquery.Node) (any, bool) {
	if context == nil {
		context = e.doc
	}
	if !tree.Contains(e.doc, context) {
		e.report(diag.LevelError, errors.ErrXPathInvalidContext, "context node is not part of the document", expr)
		return nil, false
	}
	compiled, err := e.compile(expr)
	if err != nil {
		e.report(diag.LevelError, errors.ErrXPathInvalidExpression, err.Error(), expr)
		return nil, false
	}
	result, err := e.eval(compiled, context)
	if err != nil {
		e.report(diag.LevelError, errors.ErrXPathEvaluation, err.Error(), expr)
		return nil, false
	}
	return result, true
}

func (e *Engine) compile(expr string) (*xpath.Expr, error) {
	if compiled, ok := e.cache.Get(expr); ok {
		return compiled, nil
	}
	compiled, err := xpath.CompileWithNS(expr, e.namespaces)
	if err != nil {
		return nil, err
	}
	e.cache.Add(expr, compiled)
	return compiled, nil
}

func (e *Engine) eval(compiled *xpath.Expr, context *xmlquery.Node) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	nav := newNavigator(e.doc, context)
	if context.Type == xmlquery.AttributeNode {
		nav = attributeNavigator(e.doc, context)
	}
	value := compiled.Evaluate(nav)
	iter, ok := value.(*xpath.NodeIterator)
	if !ok {
		return value, nil
	}
	nodes := []*xmlquery.Node{}
	for iter.MoveNext() {
		nodes = append(nodes, iter.Current().(*navigator).node())
	}
	return nodes, nil
}

func (e *Engine) report(level diag.Level, code errors.ErrorCode, msg, expr string) {
	e.reporter.Report(diag.Entry{
		Level:   level,
		Code:    string(code),
		Message: msg,
		Source:  expr,
	})
}

// attributeNavigator positions a navigator on the attribute that a detached
// attribute node stands for.
func attributeNavigator(doc, attr *xmlquery.Node) *navigator {
	nav := newNavigator(doc, attr.Parent)
	for i, a := range attr.Parent.Attr {
		if a.Name.Local == attr.Data && a.Name.Space == attr.Prefix {
			nav.attr = i
			break
		}
	}
	return nav
}

// declaredPrefixes collects the prefix bindings declared anywhere in doc. The
// outermost declaration of a prefix wins.
func declaredPrefixes(doc *xmlquery.Node) map[string]string {
	out := map[string]string{"xml": namespace.XMLNamespace}
	var walk func(*xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for _, attr := range n.Attr {
			if attr.Name.Space != "xmlns" {
				continue
			}
			if _, seen := out[attr.Name.Local]; !seen {
				out[attr.Name.Local] = attr.Value
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == xmlquery.ElementNode {
				walk(c)
			}
		}
	}
	walk(doc)
	return out
}

func typeName(v any) string {
	switch v.(type) {
	case bool:
		return "a boolean"
	case float64:
		return "a number"
	case string:
		return "a string"
	default:
		return fmt.Sprintf("%T", v)
	}
}
