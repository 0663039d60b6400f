package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestQueryErrorFormatting(t *testing.T) {
	tests := []struct {
		name string
		want string
		q    Query
	}{
		{
			name: "expression only",
			q:    Query{Code: "xpath-query-failed", Message: "malformed XPath expression", Expression: "//["},
			want: "[xpath-query-failed] malformed XPath expression (query: //[)",
		},
		{
			name: "with context",
			q: Query{
				Code:       "xpath-query-failed",
				Message:    "bad token",
				Expression: "title[",
				Context:    "mods",
			},
			want: "[xpath-query-failed] bad token (query: title[) (context: mods)",
		},
		{
			name: "with all",
			q: Query{
				Code:       "xpath-query-failed",
				Message:    "bad token",
				Expression: "title[",
				Context:    "mods",
				Document:   "<mods/>",
			},
			want: "[xpath-query-failed] bad token (query: title[) (context: mods) (document: <mods/>)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewQuery(t *testing.T) {
	q := NewQuery(MalformedExpression, "//[")
	if q.Code != string(ErrXPathQuery) {
		t.Fatalf("Code = %q, want %q", q.Code, ErrXPathQuery)
	}
	if q.Expression != "//[" {
		t.Fatalf("Expression = %q, want %q", q.Expression, "//[")
	}
}

func TestDocumentErrorUnwrap(t *testing.T) {
	err := NewDocument(ErrRestore, "wake document", fs.ErrNotExist)
	if got, want := err.Error(), "[restore-failed] wake document: file does not exist"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("errors.Is(err, fs.ErrNotExist) = false, want true")
	}
	if !HasCode(fmt.Errorf("outer: %w", err), ErrRestore) {
		t.Fatalf("HasCode() = false, want true")
	}
	if HasCode(err, ErrXMLParse) {
		t.Fatalf("HasCode(ErrXMLParse) = true, want false")
	}
}

func TestAsQuery(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewQuery("bad token", "a["))

	got, ok := AsQuery(wrapped)
	if !ok {
		t.Fatalf("AsQuery() ok = false, want true")
	}
	if got.Expression != "a[" {
		t.Fatalf("AsQuery() expression = %q, want %q", got.Expression, "a[")
	}
	if !HasCode(wrapped, ErrXPathQuery) {
		t.Fatalf("HasCode() = false, want true")
	}
	if _, ok := AsQuery(errors.New("plain")); ok {
		t.Fatalf("AsQuery(plain) ok = true, want false")
	}
	if _, ok := AsQuery(nil); ok {
		t.Fatalf("AsQuery(nil) ok = true, want false")
	}
}
