package xmldoc

import (
	"cmp"
	"fmt"

	"github.com/antchfx/xmlquery"

	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/internal/tree"
	"github.com/jacoelho/xmldoc/internal/xpathq"
	"github.com/jacoelho/xmldoc/namespace"
	"github.com/jacoelho/xmldoc/noderef"
	"github.com/jacoelho/xmldoc/schema"
)

// State is the lifecycle state of a document.
type State int

const (
	// Live documents hold a parsed tree and a query engine.
	Live State = iota + 1
	// Asleep documents hold only their serialized text.
	Asleep
)

func (s State) String() string {
	switch s {
	case Live:
		return "live"
	case Asleep:
		return "asleep"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is the persisted form of a sleeping document. The tree and query
// engine are not part of it; they are rebuilt from XML on wake.
type Snapshot struct {
	Namespaces *namespace.Registry `yaml:"namespaces"`
	Schema     *schema.Validator   `yaml:"schema,omitempty"`
	Registry   *noderef.Registry   `yaml:"registry"`
	XML        string              `yaml:"xml"`
}

// State returns the document's lifecycle state.
func (d *Document) State() State {
	return d.state
}

// Sleep flattens the tree to text and drops the tree and query engine. Node
// bindings are detached into positional paths; bindings to nodes that are no
// longer part of the tree are dropped.
func (d *Document) Sleep() (*Snapshot, error) {
	if d.state != Live {
		return nil, d.asleepError("sleep")
	}
	d.serialized = tree.String(d.tree, d.format)
	for _, key := range d.registry.Detach(d.tree) {
		d.opts.logger.Warn("dropped node binding outside the tree", "key", key)
	}
	d.tree = nil
	d.engine = nil
	d.state = Asleep
	return d.snapshot(), nil
}

// Snapshot returns the persisted form of a sleeping document.
func (d *Document) Snapshot() (*Snapshot, error) {
	if d.state != Asleep {
		return nil, fmt.Errorf("snapshot: document is %s", d.state)
	}
	return d.snapshot(), nil
}

func (d *Document) snapshot() *Snapshot {
	return &Snapshot{
		Namespaces: d.namespaces,
		Schema:     d.schema,
		Registry:   d.registry,
		XML:        d.serialized,
	}
}

// Wake parses the serialized text into a new tree without preserving
// whitespace-only text, rebuilds the query engine and restores the node
// registry against the new tree. On failure the document stays asleep. Waking
// a live document is a no-op.
func (d *Document) Wake() error {
	if d.state == Live {
		return nil
	}
	doc, err := d.parse(d.serialized, false)
	if err != nil {
		return errors.NewDocument(errors.ErrRestore, "wake document", err)
	}
	engine, err := d.newEngine(doc)
	if err != nil {
		return errors.NewDocument(errors.ErrRestore, "wake document", err)
	}
	if err := d.registry.Restore(doc); err != nil {
		return errors.NewDocument(errors.ErrRestore, "wake document", err)
	}

	d.tree = doc
	d.engine = engine
	d.state = Live
	d.format = tree.Format{Indent: cmp.Or(d.opts.indent, defaultWakeIndent)}
	d.serialized = ""
	d.opts.logger.Debug("document woken", "root", tree.QName(tree.DocumentElement(doc)), "bindings", d.registry.Len())
	return nil
}

// Restore wakes a document from a snapshot produced by Sleep, typically after
// the snapshot was decoded in another process. A schema recorded in the
// snapshot is compiled again from its locator; failure to do so fails the
// restore.
func Restore(s *Snapshot, opts Options) (*Document, error) {
	if s == nil {
		return nil, errors.NewDocument(errors.ErrRestore, "restore document", fmt.Errorf("nil snapshot"))
	}
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, fmt.Errorf("document options: %w", err)
	}

	d := &Document{
		namespaces: cmp.Or(s.Namespaces, &namespace.Registry{}),
		registry:   cmp.Or(s.Registry, noderef.New()),
		serialized: s.XML,
		opts:       resolved,
		state:      Asleep,
	}
	if s.Schema != nil && s.Schema.Locator() != "" {
		v := s.Schema
		if !v.Loaded() {
			v, err = v.Reload(resolved.schema)
			if err != nil {
				return nil, errors.NewDocument(errors.ErrRestore, "restore schema", err)
			}
		}
		d.schema = v
	}
	if err := d.Wake(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) newEngine(doc *xmlquery.Node) (*xpathq.Engine, error) {
	return xpathq.New(doc, xpathq.Config{
		Namespaces: d.namespaces.Prefixes(),
		Reporter:   d.opts.diagnostics,
		CacheSize:  d.opts.queryCache,
	})
}
