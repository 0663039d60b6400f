package xmldoc

import (
	"encoding/xml"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/jacoelho/xmldoc/diag"
	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/internal/tree"
	"github.com/jacoelho/xmldoc/internal/xpathq"
	"github.com/jacoelho/xmldoc/namespace"
	"github.com/jacoelho/xmldoc/noderef"
	"github.com/jacoelho/xmldoc/schema"
)

// Document is an XML tree together with its namespace registry, optional schema
// and node registry. A Document is not safe for concurrent use.
type Document struct {
	tree       *xmlquery.Node
	engine     *xpathq.Engine
	namespaces *namespace.Registry
	schema     *schema.Validator
	schemaErr  error
	registry   *noderef.Registry
	serialized string
	format     tree.Format
	opts       resolvedOptions
	state      State
}

// New constructs a document. When opts carries XML text the tree is parsed from
// it; otherwise a root element named rootName is synthesized in the registry's
// default namespace (or the namespace bound to rootName's prefix). In both cases
// the registry's declarations are stamped onto the document element; declarations
// already present are kept.
//
// A schema locator that cannot be loaded does not fail construction: the failure
// is reported to the diagnostic log, SchemaError returns it and the document
// validates as always valid.
func New(rootName string, ns *namespace.Registry, opts Options) (*Document, error) {
	if ns == nil {
		return nil, errors.NewDocument(errors.ErrInvalidNamespaceRegistry, "create document", fmt.Errorf("nil namespace registry"))
	}
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("document options: %w", err)
	}

	d := &Document{
		namespaces: ns,
		registry:   noderef.New(),
		format:     tree.Format{Indent: resolved.indent},
		opts:       resolved,
	}

	var doc *xmlquery.Node
	if resolved.xml != "" {
		doc, err = d.parse(resolved.xml, resolved.indent == "")
	} else {
		doc, err = synthesize(rootName, ns)
	}
	if err != nil {
		return nil, err
	}
	ns.Stamp(tree.DocumentElement(doc))

	if err := d.bind(doc); err != nil {
		return nil, errors.NewDocument(errors.ErrXMLParse, "create document", err)
	}
	d.loadSchema()
	return d, nil
}

func synthesize(rootName string, ns *namespace.Registry) (*xmlquery.Node, error) {
	if rootName == "" {
		return nil, errors.NewDocument(errors.ErrInvalidRootName, "create document", fmt.Errorf("empty root name"))
	}
	prefix, _, err := tree.SplitQName(rootName)
	if err != nil {
		return nil, errors.NewDocument(errors.ErrInvalidRootName, "create document", err)
	}
	uri := ns.DefaultURI()
	if prefix != "" {
		bound, ok := ns.URIFor(prefix)
		if !ok {
			return nil, errors.NewDocument(errors.ErrInvalidRootName, "create document",
				fmt.Errorf("root name %s uses unbound prefix %q", rootName, prefix))
		}
		uri = bound
	}
	doc, err := tree.NewDocument(rootName, uri)
	if err != nil {
		return nil, errors.NewDocument(errors.ErrInvalidRootName, "create document", err)
	}
	return doc, nil
}

// parse reads text into a tree. Parse failures are reported to the diagnostic
// log before being returned.
func (d *Document) parse(text string, preserveSpace bool) (*xmlquery.Node, error) {
	doc, err := tree.ParseString(text, tree.ParseOptions{Limits: d.opts.limits, PreserveSpace: preserveSpace})
	if err == nil {
		return doc, nil
	}

	code := errors.ErrXMLParse
	var limitErr *tree.LimitError
	if stderrors.As(err, &limitErr) {
		code = errors.ErrXMLLimitExceeded
	}
	entry := diag.Entry{Level: diag.LevelFatal, Code: string(code), Message: err.Error()}
	var syntaxErr *xml.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		entry.Message = syntaxErr.Msg
		entry.Line = syntaxErr.Line
	}
	d.opts.diagnostics.Report(entry)
	return nil, errors.NewDocument(code, "parse xml", err)
}

// bind makes doc the live tree and builds a query engine for it.
func (d *Document) bind(doc *xmlquery.Node) error {
	engine, err := d.newEngine(doc)
	if err != nil {
		return err
	}
	d.tree = doc
	d.engine = engine
	d.state = Live
	return nil
}

func (d *Document) loadSchema() {
	locator := d.opts.schemaLocator
	if locator == "" {
		return
	}
	v, err := schema.Load(locator, d.opts.schema)
	if err != nil {
		d.schemaErr = err
		d.opts.diagnostics.Report(diag.Entry{
			Level:   diag.LevelWarning,
			Code:    string(errors.ErrSchemaLoad),
			Message: err.Error(),
			Source:  locator,
		})
		return
	}
	d.schema = v
}

// Root returns the document element, or nil while the document is asleep.
func (d *Document) Root() *xmlquery.Node {
	return tree.DocumentElement(d.tree)
}

// Tree returns the document node, or nil while the document is asleep.
func (d *Document) Tree() *xmlquery.Node {
	return d.tree
}

// Namespaces returns the namespace registry the document was built with.
func (d *Document) Namespaces() *namespace.Registry {
	return d.namespaces
}

// Registry returns the node registry.
func (d *Document) Registry() *noderef.Registry {
	return d.registry
}

// Schema returns the schema validator, or nil when the document has no schema.
func (d *Document) Schema() *schema.Validator {
	return d.schema
}

// SchemaError returns the error that prevented the schema from loading.
func (d *Document) SchemaError() error {
	return d.schemaErr
}

// NamespaceURI returns the URI bound to prefix in the namespace registry. The
// empty prefix and unknown prefixes resolve to the default namespace URI.
func (d *Document) NamespaceURI(prefix string) string {
	if uri, ok := d.namespaces.URIFor(prefix); ok {
		return uri
	}
	return d.namespaces.DefaultURI()
}

// SaveXML returns the tree flattened to text.
func (d *Document) SaveXML() (string, error) {
	if d.state != Live {
		return "", d.asleepError("save xml")
	}
	return tree.String(d.tree, d.format), nil
}

// WriteTo writes the tree flattened to text to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	text, err := d.SaveXML()
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(w, strings.NewReader(text))
	if err != nil {
		return n, fmt.Errorf("write xml: %w", err)
	}
	return n, nil
}

func (d *Document) asleepError(op string) error {
	return errors.NewDocument(errors.ErrAsleep, op, fmt.Errorf("document is asleep"))
}
