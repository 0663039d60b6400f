// Package noderef associates opaque keys with nodes of a document tree and
// rebinds them after the tree is rebuilt from text.
//
// Bindings are recorded as positional paths (see Detach) so that they survive
// serialization. After the document is parsed again, Restore resolves every path
// against the new tree.
package noderef

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xmldoc/internal/tree"
)

type binding struct {
	node *xmlquery.Node
	path string
}

// Registry maps keys to nodes. It is not safe for concurrent use.
type Registry struct {
	bindings map[string]*binding
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{bindings: make(map[string]*binding)}
}

// Register binds n under a newly generated key and returns the key. If n is
// already bound its existing key is returned.
func (r *Registry) Register(n *xmlquery.Node) (string, error) {
	if key, ok := r.Key(n); ok {
		return key, nil
	}
	key := uuid.NewString()
	if err := r.Bind(key, n); err != nil {
		return "", err
	}
	return key, nil
}

// Bind binds n under key, replacing any previous binding for key.
func (r *Registry) Bind(key string, n *xmlquery.Node) error {
	if key == "" {
		return fmt.Errorf("bind node: empty key")
	}
	if n == nil {
		return fmt.Errorf("bind node %s: nil node", key)
	}
	if !bindable(n.Type) {
		return fmt.Errorf("bind node %s: node type %d cannot be bound", key, n.Type)
	}
	if r.bindings == nil {
		r.bindings = make(map[string]*binding)
	}
	r.bindings[key] = &binding{node: n}
	return nil
}

// Node returns the node bound to key. Detached bindings have no node.
func (r *Registry) Node(key string) (*xmlquery.Node, bool) {
	b, ok := r.bindings[key]
	if !ok || b.node == nil {
		return nil, false
	}
	return b.node, true
}

// Key returns the key bound to n. Attribute nodes match by owner element and name.
func (r *Registry) Key(n *xmlquery.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, key := range r.Keys() {
		if b := r.bindings[key]; b.node != nil && sameNode(b.node, n) {
			return key, true
		}
	}
	return "", false
}

// Forget removes the binding for key.
func (r *Registry) Forget(key string) {
	delete(r.bindings, key)
}

// Keys returns the bound keys in sorted order.
func (r *Registry) Keys() []string {
	return slices.Sorted(maps.Keys(r.bindings))
}

// Len returns the number of bindings.
func (r *Registry) Len() int {
	return len(r.bindings)
}

// Path returns the recorded path of a detached binding.
func (r *Registry) Path(key string) (string, bool) {
	b, ok := r.bindings[key]
	if !ok || b.path == "" {
		return "", false
	}
	return b.path, true
}

// Detach records the path of every binding relative to doc and drops the node
// references. Bindings whose node is no longer part of doc are removed and their
// keys returned.
func (r *Registry) Detach(doc *xmlquery.Node) []string {
	var dropped []string
	for _, key := range r.Keys() {
		b := r.bindings[key]
		if b.node == nil {
			continue
		}
		path, err := tree.Path(b.node)
		if err != nil || !tree.Contains(doc, b.node) {
			delete(r.bindings, key)
			dropped = append(dropped, key)
			continue
		}
		b.path = path
		b.node = nil
	}
	return dropped
}

// Restore resolves every detached binding against doc. Either all bindings are
// rebound or, on error, none are.
func (r *Registry) Restore(doc *xmlquery.Node) error {
	resolved := make(map[string]*xmlquery.Node, len(r.bindings))
	var errs []error
	for _, key := range r.Keys() {
		b := r.bindings[key]
		if b.node != nil {
			if !tree.Contains(doc, b.node) {
				errs = append(errs, fmt.Errorf("binding %s: node belongs to another tree", key))
			}
			continue
		}
		if b.path == "" {
			errs = append(errs, fmt.Errorf("binding %s: no recorded path", key))
			continue
		}
		n, err := tree.Resolve(doc, b.path)
		if err != nil {
			errs = append(errs, fmt.Errorf("binding %s: %w", key, err))
			continue
		}
		resolved[key] = n
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore node registry: %w", err)
	}
	for key, n := range resolved {
		r.bindings[key].node = n
		r.bindings[key].path = ""
	}
	return nil
}

// MarshalYAML encodes the registry as a key to path mapping. Live bindings are
// encoded with their current path.
func (r *Registry) MarshalYAML() (any, error) {
	out := make(map[string]string, len(r.bindings))
	for key, b := range r.bindings {
		if b.node == nil {
			out[key] = b.path
			continue
		}
		path, err := tree.Path(b.node)
		if err != nil {
			return nil, fmt.Errorf("encode binding %s: %w", key, err)
		}
		out[key] = path
	}
	return out, nil
}

// UnmarshalYAML decodes a key to path mapping into detached bindings.
func (r *Registry) UnmarshalYAML(value *yaml.Node) error {
	var raw map[string]string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode node registry: %w", err)
	}
	r.bindings = make(map[string]*binding, len(raw))
	for key, path := range raw {
		if key == "" || path == "" {
			return fmt.Errorf("decode node registry: empty key or path")
		}
		r.bindings[key] = &binding{path: path}
	}
	return nil
}

func bindable(t xmlquery.NodeType) bool {
	switch t {
	case xmlquery.ElementNode, xmlquery.AttributeNode, xmlquery.TextNode, xmlquery.CharDataNode, xmlquery.CommentNode:
		return true
	default:
		return false
	}
}

func sameNode(a, b *xmlquery.Node) bool {
	if a == b {
		return true
	}
	return a.Type == xmlquery.AttributeNode && b.Type == xmlquery.AttributeNode &&
		a.Parent == b.Parent && a.Data == b.Data && a.Prefix == b.Prefix
}
