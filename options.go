package xmldoc

import (
	"cmp"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jacoelho/xsd"

	"github.com/jacoelho/xmldoc/diag"
	"github.com/jacoelho/xmldoc/internal/tree"
	"github.com/jacoelho/xmldoc/internal/xpathq"
	"github.com/jacoelho/xmldoc/schema"
)

const (
	defaultMaxDepth     = 256
	defaultMaxAttrs     = 256
	defaultMaxInputSize = 64 << 20
	defaultWakeIndent   = "  "
)

type intOption struct {
	value int64
	set   bool
}

func (o intOption) resolved() int64 {
	if !o.set {
		return 0
	}
	return o.value
}

// Options configures document construction, parsing and restore.
type Options struct {
	logger        *slog.Logger
	diagnostics   *diag.Log
	schemaFS      fs.FS
	schemaLocator string
	xml           string
	indent        string
	schemaLoad    xsd.LoadOptions
	maxDepth      intOption
	maxAttrs      intOption
	maxInputSize  intOption
	queryCache    intOption
}

type resolvedOptions struct {
	logger        *slog.Logger
	diagnostics   *diag.Log
	schemaLocator string
	xml           string
	indent        string
	schema        schema.LoadOptions
	limits        tree.Limits
	queryCache    int
}

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// Validate validates option values.
func (o Options) Validate() error {
	_, err := o.withDefaults()
	return err
}

// WithSchema sets the schema locator. An empty locator disables validation.
func (o Options) WithSchema(locator string) Options {
	o.schemaLocator = locator
	return o
}

// WithSchemaFS resolves the schema locator inside fsys instead of the local filesystem.
func (o Options) WithSchemaFS(fsys fs.FS) Options {
	o.schemaFS = fsys
	return o
}

// WithSchemaLoadOptions sets the options used to compile the schema.
func (o Options) WithSchemaLoadOptions(opts xsd.LoadOptions) Options {
	o.schemaLoad = opts
	return o
}

// WithXML sets serialized XML to load instead of synthesizing a root element.
func (o Options) WithXML(text string) Options {
	o.xml = text
	return o
}

// WithLogger sets the logger for lifecycle events (default slog.Default).
func (o Options) WithLogger(logger *slog.Logger) Options {
	o.logger = logger
	return o
}

// WithDiagnostics sets the diagnostic log queries inspect (default diag.Default).
func (o Options) WithDiagnostics(log *diag.Log) Options {
	o.diagnostics = log
	return o
}

// WithIndent enables pretty-printed output. Loaded XML then drops whitespace-only text.
func (o Options) WithIndent(indent string) Options {
	o.indent = indent
	return o
}

// WithMaxDepth sets the XML element depth limit (0 uses default).
func (o Options) WithMaxDepth(value int) Options {
	o.maxDepth = intOption{value: int64(value), set: true}
	return o
}

// WithMaxAttrs sets the per-element attribute limit (0 uses default).
func (o Options) WithMaxAttrs(value int) Options {
	o.maxAttrs = intOption{value: int64(value), set: true}
	return o
}

// WithMaxInputSize sets the XML input size limit in bytes (0 uses default).
func (o Options) WithMaxInputSize(value int64) Options {
	o.maxInputSize = intOption{value: value, set: true}
	return o
}

// WithQueryCacheSize sets how many compiled XPath expressions a document keeps (0 uses default).
func (o Options) WithQueryCacheSize(value int) Options {
	o.queryCache = intOption{value: int64(value), set: true}
	return o
}

func (o Options) withDefaults() (resolvedOptions, error) {
	switch {
	case o.maxDepth.resolved() < 0:
		return resolvedOptions{}, fmt.Errorf("xml max depth must be >= 0")
	case o.maxAttrs.resolved() < 0:
		return resolvedOptions{}, fmt.Errorf("xml max attrs must be >= 0")
	case o.maxInputSize.resolved() < 0:
		return resolvedOptions{}, fmt.Errorf("xml max input size must be >= 0")
	case o.queryCache.resolved() < 0:
		return resolvedOptions{}, fmt.Errorf("query cache size must be >= 0")
	}
	if err := o.schemaLoad.Validate(); err != nil {
		return resolvedOptions{}, fmt.Errorf("schema load options: %w", err)
	}
	return resolvedOptions{
		logger:        cmp.Or(o.logger, slog.Default()),
		diagnostics:   cmp.Or(o.diagnostics, diag.Default),
		schemaLocator: o.schemaLocator,
		xml:           o.xml,
		indent:        o.indent,
		schema:        schema.LoadOptions{FS: o.schemaFS, Load: o.schemaLoad},
		limits: tree.Limits{
			MaxDepth:     int(cmp.Or(o.maxDepth.resolved(), defaultMaxDepth)),
			MaxAttrs:     int(cmp.Or(o.maxAttrs.resolved(), defaultMaxAttrs)),
			MaxInputSize: cmp.Or(o.maxInputSize.resolved(), defaultMaxInputSize),
		},
		queryCache: int(cmp.Or(o.queryCache.resolved(), xpathq.DefaultCacheSize)),
	}, nil
}
