// Package schema validates document trees against an XML Schema 1.0 definition
// compiled by github.com/jacoelho/xsd.
package schema

import (
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/jacoelho/xsd"
	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xmldoc/internal/tree"
)

// LoadOptions configures Load.
type LoadOptions struct {
	// FS, when set, resolves the locator and its includes inside FS instead of
	// the local filesystem.
	FS   fs.FS
	Load xsd.LoadOptions
}

// Validator is a compiled schema identified by the locator it was loaded from.
// It is safe for concurrent use.
type Validator struct {
	schema  *xsd.Schema
	locator string
}

// Load compiles the schema at locator. A locator is a filesystem path, a file://
// URI, or a path inside LoadOptions.FS.
func Load(locator string, opts LoadOptions) (*Validator, error) {
	if locator == "" {
		return nil, fmt.Errorf("load schema: empty locator")
	}
	fsys, name, err := resolve(locator, opts.FS)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", locator, err)
	}
	compiled, err := xsd.LoadWithOptions(fsys, name, opts.Load)
	if err != nil {
		return nil, err
	}
	return &Validator{schema: compiled, locator: locator}, nil
}

func resolve(locator string, fsys fs.FS) (fs.FS, string, error) {
	if fsys != nil {
		return fsys, strings.TrimPrefix(locator, "/"), nil
	}
	path := locator
	if u, err := url.Parse(locator); err == nil && len(u.Scheme) > 1 {
		if u.Scheme != "file" {
			return nil, "", fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
		path = u.Path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", err
	}
	return os.DirFS(filepath.Dir(abs)), filepath.Base(abs), nil
}

// Locator returns the locator the schema was loaded from.
func (v *Validator) Locator() string {
	if v == nil {
		return ""
	}
	return v.locator
}

// Loaded reports whether the schema is compiled. A validator decoded from YAML
// carries only its locator until it is reloaded.
func (v *Validator) Loaded() bool {
	return v != nil && v.schema != nil
}

// Reload compiles the schema again from its locator.
func (v *Validator) Reload(opts LoadOptions) (*Validator, error) {
	return Load(v.Locator(), opts)
}

// Validate validates an XML document read from r.
func (v *Validator) Validate(r io.Reader) error {
	if !v.Loaded() {
		return fmt.Errorf("validate: schema %s is not loaded", v.Locator())
	}
	return v.schema.Validate(r)
}

// ValidateNode validates the tree rooted at doc.
func (v *Validator) ValidateNode(doc *xmlquery.Node) error {
	if doc == nil {
		return fmt.Errorf("validate: nil document")
	}
	return v.Validate(strings.NewReader(tree.String(doc, tree.Format{})))
}

// Valid reports whether the tree rooted at doc is valid.
func (v *Validator) Valid(doc *xmlquery.Node) bool {
	return v.ValidateNode(doc) == nil
}

// MarshalYAML persists only the locator; compiled schemas are not serializable.
func (v *Validator) MarshalYAML() (any, error) {
	return v.Locator(), nil
}

// UnmarshalYAML restores the locator. The schema must be reloaded before use.
func (v *Validator) UnmarshalYAML(value *yaml.Node) error {
	var locator string
	if err := value.Decode(&locator); err != nil {
		return fmt.Errorf("decode schema locator: %w", err)
	}
	*v = Validator{locator: locator}
	return nil
}
