package errors

import (
	"errors"
	"strings"
)

// ErrorCode identifies the failure class of a document error.
type ErrorCode string

const (
	// ErrXMLParse indicates the XML text could not be parsed into a tree.
	ErrXMLParse ErrorCode = "xml-parse-error"
	// ErrXMLLimitExceeded indicates the XML text exceeded a configured parse limit.
	ErrXMLLimitExceeded ErrorCode = "xml-limit-exceeded"
	// ErrInvalidRootName indicates a root element could not be synthesized from the given name.
	ErrInvalidRootName ErrorCode = "invalid-root-name"
	// ErrInvalidNamespaceRegistry indicates a document was constructed without a namespace registry.
	ErrInvalidNamespaceRegistry ErrorCode = "invalid-namespace-registry"
	// ErrSchemaLoad indicates a schema locator could not be turned into a validator.
	ErrSchemaLoad ErrorCode = "schema-load-failed"

	// ErrXPathInvalidExpression indicates an XPath expression failed to compile.
	ErrXPathInvalidExpression ErrorCode = "xpath-invalid-expression"
	// ErrXPathInvalidContext indicates a context node does not belong to the queried tree.
	ErrXPathInvalidContext ErrorCode = "xpath-invalid-context"
	// ErrXPathEvaluation indicates an XPath expression failed while being evaluated.
	ErrXPathEvaluation ErrorCode = "xpath-evaluation-failed"
	// ErrXPathNotNodeSet indicates a node query evaluated to a scalar value.
	ErrXPathNotNodeSet ErrorCode = "xpath-not-node-set"
	// ErrXPathQuery is the code carried by every failed document query.
	ErrXPathQuery ErrorCode = "xpath-query-failed"

	// ErrRestore indicates a sleeping document could not be woken.
	ErrRestore ErrorCode = "restore-failed"
	// ErrAsleep indicates an operation that needs the live tree was called on a sleeping document.
	ErrAsleep ErrorCode = "document-asleep"
)

// MalformedExpression is the message used when a query fails without a diagnostic entry.
const MalformedExpression = "malformed XPath expression"

// Query describes a failed XPath query together with the context needed to diagnose it.
//
//nolint:errname // public API name mirrors the operation it reports on.
type Query struct {
	Code       string
	Message    string
	Expression string
	Context    string
	Document   string
}

// Error formats the query failure, including expression, context tag and document text.
func (q *Query) Error() string {
	if q == nil {
		return "query <nil>"
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(q.Code)
	b.WriteString("] ")
	b.WriteString(q.Message)
	b.WriteString(" (query: ")
	b.WriteString(q.Expression)
	b.WriteByte(')')
	if q.Context != "" {
		b.WriteString(" (context: ")
		b.WriteString(q.Context)
		b.WriteByte(')')
	}
	if q.Document != "" {
		b.WriteString(" (document: ")
		b.WriteString(q.Document)
		b.WriteByte(')')
	}
	return b.String()
}

// NewQuery builds a Query error for expr with the given message.
func NewQuery(msg, expr string) *Query {
	return &Query{Code: string(ErrXPathQuery), Message: msg, Expression: expr}
}

// Document describes a failure to construct, restore or operate on a document.
//
//nolint:errname // public API name mirrors the type it reports on.
type Document struct {
	Err     error
	Code    string
	Message string
}

// Error formats the failure as "[code] message: cause".
func (d *Document) Error() string {
	if d == nil {
		return "document <nil>"
	}

	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(d.Code)
	b.WriteString("] ")
	b.WriteString(d.Message)
	if d.Err != nil {
		b.WriteString(": ")
		b.WriteString(d.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (d *Document) Unwrap() error {
	if d == nil {
		return nil
	}
	return d.Err
}

// NewDocument builds a Document error with a code, message and optional cause.
func NewDocument(code ErrorCode, msg string, err error) *Document {
	return &Document{Code: string(code), Message: msg, Err: err}
}

// AsQuery extracts a query failure from err.
func AsQuery(err error) (*Query, bool) {
	if err == nil {
		return nil, false
	}
	var q *Query
	if errors.As(err, &q) && q != nil {
		return q, true
	}
	return nil, false
}

// HasCode reports whether err carries a Document or Query error with the given code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var d *Document
	if errors.As(err, &d) && d != nil && d.Code == string(code) {
		return true
	}
	if q, ok := AsQuery(err); ok {
		return q.Code == string(code)
	}
	return false
}
