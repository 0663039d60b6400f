package xmldoc

import (
	"github.com/antchfx/xmlquery"

	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/internal/tree"
)

// Query evaluates an XPath 1.0 expression and returns the matched nodes in
// document order. A nil context evaluates against the document node. Prefixes
// from the namespace registry and those declared on the document element are
// available to the expression. Unprefixed name tests match by local name.
//
// An expression that matches nothing returns an empty, non-nil slice. Any
// failure, including an expression that evaluates to a scalar, returns an
// *errors.Query carrying the expression, the context tag and the document text.
func (d *Document) Query(path string, context *xmlquery.Node) ([]*xmlquery.Node, error) {
	if d.state != Live {
		return nil, d.asleepError("query")
	}
	var nodes []*xmlquery.Node
	err := d.detect(path, context, func() bool {
		var ok bool
		nodes, ok = d.engine.Select(path, context)
		return ok
	})
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*xmlquery.Node{}
	}
	return nodes, nil
}

// QueryOne returns the first node matched by path, or nil when nothing matches.
func (d *Document) QueryOne(path string, context *xmlquery.Node) (*xmlquery.Node, error) {
	nodes, err := d.Query(path, context)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

// Evaluate evaluates an XPath 1.0 expression that may yield a scalar. The
// result is a bool, float64, string or []*xmlquery.Node.
func (d *Document) Evaluate(expr string, context *xmlquery.Node) (any, error) {
	if d.state != Live {
		return nil, d.asleepError("evaluate")
	}
	var result any
	err := d.detect(expr, context, func() bool {
		var ok bool
		result, ok = d.engine.Evaluate(expr, context)
		return ok
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// detect runs query with the diagnostic log in capture mode and treats both the
// engine's sentinel and any entry reported meanwhile as failure. The prior
// capture mode is restored on every path.
func (d *Document) detect(expr string, context *xmlquery.Node, query func() bool) error {
	log := d.opts.diagnostics
	scope := log.Acquire()
	defer scope.Release()

	before := log.Count()
	ok := query()
	if ok && log.Count() == before {
		return nil
	}

	msg := errors.MalformedExpression
	if log.Count() > before {
		if last, found := log.Last(); found && last.Message != "" {
			msg = last.Message
		}
	}
	qerr := errors.NewQuery(msg, expr)
	if context != nil {
		qerr.Context = tree.QName(context)
	}
	qerr.Document = tree.String(d.tree, d.format)
	return qerr
}
