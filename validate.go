package xmldoc

import (
	"strings"
)

// Valid reports whether the document conforms to its schema. A document without
// a schema, including one whose schema failed to load, is always valid. A
// sleeping document is validated from its serialized text.
func (d *Document) Valid() bool {
	return d.Validate() == nil
}

// Validate validates the document against its schema and returns the
// violations. Schema violations unwrap to xsd errors.ValidationList; use
// github.com/jacoelho/xsd/errors.AsValidations to inspect them.
func (d *Document) Validate() error {
	if d.schema == nil {
		return nil
	}
	if d.state != Live {
		return d.schema.Validate(strings.NewReader(d.serialized))
	}
	return d.schema.ValidateNode(d.tree)
}
