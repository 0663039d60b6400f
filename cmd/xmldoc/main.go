package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"
	xsderrors "github.com/jacoelho/xsd/errors"

	"github.com/jacoelho/xmldoc"
	"github.com/jacoelho/xmldoc/config"
	"github.com/jacoelho/xmldoc/diag"
	"github.com/jacoelho/xmldoc/namespace"
)

func main() {
	os.Exit(run())
}

func run() int {
	return runWithArgs(os.Args[1:], os.Stdout, os.Stderr)
}

// bindings collects repeated -ns prefix=uri flags.
type bindings map[string]string

func (b bindings) String() string {
	parts := make([]string, 0, len(b))
	for _, prefix := range slices.Sorted(maps.Keys(b)) {
		parts = append(parts, prefix+"="+b[prefix])
	}
	return strings.Join(parts, ",")
}

func (b bindings) Set(value string) error {
	prefix, uri, ok := strings.Cut(value, "=")
	if !ok || prefix == "" || uri == "" {
		return fmt.Errorf("namespace binding %q must be prefix=uri", value)
	}
	b[prefix] = uri
	return nil
}

type command struct {
	configPath string
	root       string
	defaultNS  string
	ns         bindings
	schema     string
	query      string
	validate   bool
	sleep      string
	wake       string
	storeDir   string
	indent     string
}

func runWithArgs(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xmldoc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cmd := command{ns: bindings{}}
	fs.StringVar(&cmd.configPath, "config", "", "path to YAML configuration file")
	fs.StringVar(&cmd.root, "root", "", "root element name to synthesize when no XML file is given")
	fs.StringVar(&cmd.defaultNS, "default-ns", "", "default namespace URI")
	fs.Var(cmd.ns, "ns", "namespace binding prefix=uri (repeatable)")
	fs.StringVar(&cmd.schema, "schema", "", "path to XSD schema file")
	fs.StringVar(&cmd.query, "query", "", "XPath expression to evaluate")
	fs.BoolVar(&cmd.validate, "validate", false, "validate the document against its schema")
	fs.StringVar(&cmd.sleep, "sleep", "", "put the document to sleep in the store under this id")
	fs.StringVar(&cmd.wake, "wake", "", "wake the document stored under this id")
	fs.StringVar(&cmd.storeDir, "store-dir", "", "directory for the file store")
	fs.StringVar(&cmd.indent, "indent", "", "indentation for output")
	cpuProfilePath := fs.String("cpuprofile", "", "write CPU profile to file")
	memProfilePath := fs.String("memprofile", "", "write memory profile to file")
	var usageErr error
	fs.Usage = func() {
		usageErr = errors.Join(
			usageErr,
			writef(stderr, "Usage: %s [options] [document.xml]\n\n", fs.Name()),
			writeln(stderr, "Loads or synthesizes an XML document, then validates, queries or stores it."),
			writeln(stderr),
			writeln(stderr, "Options:"),
		)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	remaining := fs.Args()
	usage := func(msg string) int {
		if err := writeln(stderr, "error: "+msg); err != nil {
			return 1
		}
		fs.Usage()
		if usageErr != nil {
			return 1
		}
		return 2
	}
	switch {
	case len(remaining) > 1:
		return usage("at most one XML file argument is allowed")
	case cmd.wake != "" && len(remaining) == 1:
		return usage("--wake cannot be combined with an XML file")
	case cmd.wake == "" && len(remaining) == 0 && cmd.root == "":
		return usage("--root is required when no XML file is given")
	}

	prof := &profiler{cpuPath: *cpuProfilePath, memPath: *memProfilePath}
	if err := prof.start(); err != nil {
		_ = writef(stderr, "error: %v\n", err)
		return 1
	}
	runErr := cmd.run(context.Background(), prof, remaining, stdout, stderr)
	if err := prof.stop(); err != nil {
		_ = writef(stderr, "error: %v\n", err)
		if runErr == nil {
			return 1
		}
	}
	if runErr != nil {
		_ = writef(stderr, "error: %v\n", runErr)
		return 1
	}
	return 0
}

func (c command) run(ctx context.Context, prof *profiler, files []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.schema != "" {
		cfg.Schema = c.schema
	}
	if c.indent != "" {
		cfg.Indent = c.indent
	}
	if c.storeDir != "" {
		cfg.Store.Driver = config.DriverFile
		cfg.Store.Dir = c.storeDir
	}
	logger := cfg.Logger(stderr)
	opts := cfg.Options().WithLogger(logger).WithDiagnostics(diag.New(logger))

	var doc *xmldoc.Document
	err = prof.do(ctx, "load", func(ctx context.Context) error {
		var openErr error
		doc, openErr = c.open(ctx, cfg, files, opts)
		return openErr
	})
	if err != nil {
		return err
	}

	if c.validate {
		if err := prof.do(ctx, "validate", func(context.Context) error { return report(doc, stderr) }); err != nil {
			return err
		}
	}
	if c.query != "" {
		if err := prof.do(ctx, "query", func(context.Context) error { return printQuery(doc, c.query, stdout) }); err != nil {
			return err
		}
	}
	if c.sleep != "" {
		return prof.do(ctx, "sleep", func(ctx context.Context) error { return c.store(ctx, cfg, doc, stdout) })
	}
	if c.query == "" && !c.validate {
		text, err := doc.SaveXML()
		if err != nil {
			return err
		}
		return writef(stdout, "%s", text)
	}
	return nil
}

func (c command) registry(cfg *config.Config) (*namespace.Registry, error) {
	prefixes := cfg.Namespaces.Prefixes()
	maps.Copy(prefixes, c.ns)
	defaultURI := c.defaultNS
	if defaultURI == "" {
		defaultURI = cfg.Namespaces.DefaultURI()
	}
	return namespace.New(defaultURI, prefixes)
}

func (c command) open(ctx context.Context, cfg *config.Config, files []string, opts xmldoc.Options) (*xmldoc.Document, error) {
	if c.wake != "" {
		s, err := cfg.OpenStore(ctx)
		if err != nil {
			return nil, err
		}
		defer s.Close()
		snap, err := s.Load(ctx, c.wake)
		if err != nil {
			return nil, err
		}
		return xmldoc.Restore(snap, opts)
	}

	ns, err := c.registry(cfg)
	if err != nil {
		return nil, err
	}
	if len(files) == 1 {
		return xmldoc.NewFromFile(c.root, ns, files[0], opts)
	}
	return xmldoc.New(c.root, ns, opts)
}

func (c command) store(ctx context.Context, cfg *config.Config, doc *xmldoc.Document, stdout io.Writer) error {
	s, err := cfg.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	snap, err := doc.Sleep()
	if err != nil {
		return err
	}
	if err := s.Save(ctx, c.sleep, snap); err != nil {
		return err
	}
	return writef(stdout, "stored %s\n", c.sleep)
}

func report(doc *xmldoc.Document, stderr io.Writer) error {
	if err := doc.SchemaError(); err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}
	err := doc.Validate()
	if err == nil {
		return nil
	}
	if violations, ok := xsderrors.AsValidations(err); ok {
		for _, v := range violations {
			if writeErr := writeln(stderr, v.Error()); writeErr != nil {
				return writeErr
			}
		}
		return errors.New("document fails to validate")
	}
	return fmt.Errorf("validating: %w", err)
}

func printQuery(doc *xmldoc.Document, expr string, stdout io.Writer) error {
	result, err := doc.Evaluate(expr, nil)
	if err != nil {
		return err
	}
	nodes, ok := result.([]*xmlquery.Node)
	if !ok {
		return writef(stdout, "%v\n", result)
	}
	for _, n := range nodes {
		text := n.InnerText()
		if n.Type == xmlquery.ElementNode {
			text = n.OutputXML(true)
		}
		if err := writeln(stdout, text); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	_, err := fmt.Fprintln(w, args...)
	return err
}
