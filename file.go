package xmldoc

import (
	"fmt"
	"io"
	"os"

	"github.com/jacoelho/xmldoc/errors"
	"github.com/jacoelho/xmldoc/namespace"
)

// NewFromFile constructs a document from the XML file at path. An empty file is
// a parse error rather than a request to synthesize rootName.
func NewFromFile(rootName string, ns *namespace.Registry, path string, opts Options) (doc *Document, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xml file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close xml file %s: %w", path, closeErr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read xml file %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, errors.NewDocument(errors.ErrXMLParse, "parse xml", fmt.Errorf("empty file %s", path))
	}
	return New(rootName, ns, opts.WithXML(string(data)))
}
