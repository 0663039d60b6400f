package xmldoc_test

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xsd"

	"github.com/jacoelho/xmldoc"
	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/namespace"
)

func mustSleep(t *testing.T, doc *xmldoc.Document) *xmldoc.Snapshot {
	t.Helper()
	snap, err := doc.Sleep()
	if err != nil {
		t.Fatalf("Sleep() error = %v", err)
	}
	return snap
}

func TestSleepWake(t *testing.T) {
	doc := newModsDocument(t, newLog())
	before := mustSave(t, doc)

	snap := mustSleep(t, doc)
	if doc.State() != xmldoc.Asleep || doc.Tree() != nil || doc.Root() != nil {
		t.Fatalf("State() = %s, Tree() = %v, want asleep without tree", doc.State(), doc.Tree())
	}
	if snap.XML != before {
		t.Fatalf("Snapshot XML = %q, want %q", snap.XML, before)
	}

	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if doc.State() != xmldoc.Live {
		t.Fatalf("State() = %s, want live", doc.State())
	}
	after := mustSave(t, doc)
	if !strings.Contains(after, "\n  <titleInfo>\n    <title>Moby Dick</title>\n  </titleInfo>\n") {
		t.Fatalf("SaveXML() after wake = %q, want indented tree", after)
	}

	nodes, err := doc.Query("//namePart", nil)
	if err != nil || len(nodes) != 1 || nodes[0].InnerText() != "Melville" {
		t.Fatalf("Query() after wake = %d nodes, %v", len(nodes), err)
	}
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() on live document error = %v", err)
	}
}

func TestSleepWakeIsStable(t *testing.T) {
	doc := newModsDocument(t, newLog())
	mustSleep(t, doc)
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	first := mustSave(t, doc)

	mustSleep(t, doc)
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
	if second := mustSave(t, doc); second != first {
		t.Fatalf("second cycle = %q, want %q", second, first)
	}
}

func TestSleepWakeKeepsMixedContent(t *testing.T) {
	const input = `<doc><p>Hello <b>big</b> world</p><p><i>a</i> and <i>b</i></p></doc>`
	doc := mustNew(t, "doc", namespace.MustNew("", nil), quietOptions(newLog()).WithXML(input))

	var first string
	for cycle := range 3 {
		mustSleep(t, doc)
		if err := doc.Wake(); err != nil {
			t.Fatalf("cycle %d: Wake() error = %v", cycle, err)
		}
		paras, err := doc.Query("//p", nil)
		if err != nil || len(paras) != 2 {
			t.Fatalf("cycle %d: Query(//p) = %d nodes, %v", cycle, len(paras), err)
		}
		if got := paras[0].InnerText(); got != "Hello big world" {
			t.Fatalf("cycle %d: InnerText() = %q, want %q", cycle, got, "Hello big world")
		}
		if got := paras[1].InnerText(); got != "a and b" {
			t.Fatalf("cycle %d: InnerText() = %q, want %q", cycle, got, "a and b")
		}
		text := mustSave(t, doc)
		if cycle == 0 {
			first = text
		} else if text != first {
			t.Fatalf("cycle %d: SaveXML() = %q, want %q", cycle, text, first)
		}
	}
}

func TestTextBindingSurvivesSleep(t *testing.T) {
	doc := mustNew(t, "a", namespace.MustNew("", nil), quietOptions(newLog()).WithXML("<a>\n  <b/>tail</a>"))
	tail, err := doc.QueryOne("/a/text()[normalize-space()='tail']", nil)
	if err != nil || tail == nil {
		t.Fatalf("QueryOne() = %v, %v, want tail text", tail, err)
	}
	reg := doc.Registry()
	if err := reg.Bind("tail", tail); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	for cycle := range 2 {
		mustSleep(t, doc)
		if err := doc.Wake(); err != nil {
			t.Fatalf("cycle %d: Wake() error = %v", cycle, err)
		}
		n, ok := reg.Node("tail")
		if !ok || n.Data != "tail" {
			t.Fatalf("cycle %d: Node(tail) = %v, %v, want tail text", cycle, n, ok)
		}
	}
}

func TestAsleepOperations(t *testing.T) {
	doc := newModsDocument(t, newLog())
	mustSleep(t, doc)

	if _, err := doc.Query("//title", nil); !errors.HasCode(err, errors.ErrAsleep) {
		t.Fatalf("Query() error = %v, want %s", err, errors.ErrAsleep)
	}
	if _, err := doc.Evaluate("1", nil); !errors.HasCode(err, errors.ErrAsleep) {
		t.Fatalf("Evaluate() error = %v, want %s", err, errors.ErrAsleep)
	}
	if _, err := doc.SaveXML(); !errors.HasCode(err, errors.ErrAsleep) {
		t.Fatalf("SaveXML() error = %v, want %s", err, errors.ErrAsleep)
	}
	if _, err := doc.Sleep(); !errors.HasCode(err, errors.ErrAsleep) {
		t.Fatalf("Sleep() error = %v, want %s", err, errors.ErrAsleep)
	}
	if _, err := doc.Snapshot(); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if !doc.Valid() {
		t.Fatalf("Valid() = false, want true without schema")
	}
}

func TestSnapshotRequiresSleep(t *testing.T) {
	doc := newModsDocument(t, newLog())
	if _, err := doc.Snapshot(); err == nil {
		t.Fatalf("Snapshot() error = nil, want error for live document")
	}
}

func TestBindingsSurviveSleep(t *testing.T) {
	doc := newModsDocument(t, newLog())
	name, err := doc.QueryOne("//name", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	href, err := doc.QueryOne("//name/@xlink:href", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}

	reg := doc.Registry()
	nameKey, err := reg.Register(name)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Bind("href", href); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	mustSleep(t, doc)
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}

	restored, ok := reg.Node(nameKey)
	if !ok || restored == name || restored.Data != "name" {
		t.Fatalf("Node(%s) = %v, %v, want the name element of the new tree", nameKey, restored, ok)
	}
	found, err := doc.Query("namePart", restored)
	if err != nil || len(found) != 1 {
		t.Fatalf("Query() from restored node = %d nodes, %v", len(found), err)
	}
	attr, ok := reg.Node("href")
	if !ok || attr.InnerText() != "http://example.com/melville" {
		t.Fatalf("Node(href) = %v, %v, want attribute value", attr, ok)
	}
}

func TestSleepDropsDetachedBindings(t *testing.T) {
	doc := newModsDocument(t, newLog())
	other := newModsDocument(t, newLog())
	foreign, err := other.QueryOne("//title", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	if err := doc.Registry().Bind("foreign", foreign); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	mustSleep(t, doc)
	if _, ok := doc.Registry().Path("foreign"); ok {
		t.Fatalf("Path(foreign) ok = true, want binding dropped")
	}
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() error = %v", err)
	}
}

func TestWakeFailureStaysAsleep(t *testing.T) {
	doc := newModsDocument(t, newLog())
	other := newModsDocument(t, newLog())
	foreign, err := other.QueryOne("//title", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}

	mustSleep(t, doc)
	if err := doc.Registry().Bind("foreign", foreign); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	err = doc.Wake()
	if !errors.HasCode(err, errors.ErrRestore) {
		t.Fatalf("Wake() error = %v, want %s", err, errors.ErrRestore)
	}
	if doc.State() != xmldoc.Asleep || doc.Tree() != nil {
		t.Fatalf("State() = %s, want asleep after failed wake", doc.State())
	}

	doc.Registry().Forget("foreign")
	if err := doc.Wake(); err != nil {
		t.Fatalf("Wake() retry error = %v", err)
	}
}

func TestRestoreFromYAMLSnapshot(t *testing.T) {
	ns := namespace.MustNew("urn:test", nil)
	opts := quietOptions(newLog()).
		WithSchemaFS(schemaFS()).
		WithSchema("record.xsd").
		WithSchemaLoadOptions(xsd.NewLoadOptions())
	doc := mustNew(t, "record", ns, opts.WithXML(`<record xmlns="urn:test"><title>T</title></record>`))

	title, err := doc.QueryOne("//title", nil)
	if err != nil {
		t.Fatalf("QueryOne() error = %v", err)
	}
	key, err := doc.Registry().Register(title)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	data, err := yaml.Marshal(mustSleep(t, doc))
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	var decoded xmldoc.Snapshot
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if decoded.Schema.Loaded() {
		t.Fatalf("decoded schema Loaded() = true, want locator only")
	}

	restored, err := xmldoc.Restore(&decoded, opts)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Schema() == nil || !restored.Valid() {
		t.Fatalf("Schema() = %v, Valid() = %v, want reloaded schema", restored.Schema(), restored.Valid())
	}
	if got := restored.NamespaceURI(""); got != "urn:test" {
		t.Fatalf("NamespaceURI() = %q, want urn:test", got)
	}
	n, ok := restored.Registry().Node(key)
	if !ok || n.InnerText() != "T" {
		t.Fatalf("Node(%s) = %v, %v, want title", key, n, ok)
	}
}

func TestRestoreFailures(t *testing.T) {
	opts := quietOptions(newLog())

	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed xml", yaml: "namespaces: {default: urn:test}\nregistry: {}\nxml: \"<record>\"\n"},
		{name: "unresolvable binding", yaml: "namespaces: {default: urn:test}\nregistry: {k: \"/*[1]/*[9]\"}\nxml: \"<record/>\"\n"},
		{name: "missing schema", yaml: "namespaces: {default: urn:test}\nschema: missing.xsd\nregistry: {}\nxml: \"<record/>\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var snap xmldoc.Snapshot
			if err := yaml.Unmarshal([]byte(tt.yaml), &snap); err != nil {
				t.Fatalf("yaml.Unmarshal() error = %v", err)
			}
			_, err := xmldoc.Restore(&snap, opts.WithSchemaFS(schemaFS()))
			if !errors.HasCode(err, errors.ErrRestore) {
				t.Fatalf("Restore() error = %v, want %s", err, errors.ErrRestore)
			}
		})
	}

	if _, err := xmldoc.Restore(nil, opts); !errors.HasCode(err, errors.ErrRestore) {
		t.Fatalf("Restore(nil) error = %v, want %s", err, errors.ErrRestore)
	}
}

func TestValidateWhileAsleep(t *testing.T) {
	ns := namespace.MustNew("urn:test", nil)
	opts := quietOptions(newLog()).WithSchemaFS(schemaFS()).WithSchema("record.xsd")
	doc := mustNew(t, "record", ns, opts.WithXML(`<record xmlns="urn:test"><author/></record>`))

	mustSleep(t, doc)
	if doc.Valid() {
		t.Fatalf("Valid() = true while asleep, want serialized text validated")
	}
}
