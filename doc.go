// Package xmldoc provides a namespace-aware XML document model.
//
// A Document owns an XML tree that is either loaded from text or synthesized as a
// single root element stamped with the declarations of a namespace.Registry. The
// tree can be validated against an optional XML Schema, queried with XPath 1.0
// and put to sleep: Sleep flattens the tree to text and drops it, Wake parses the
// text back and rebinds the node registry against the new tree.
//
// Queries report failure through a single error value. Internally a query is
// considered failed when the engine returns its sentinel or when the diagnostic
// log grew while the query ran; see diag for the capture mode that makes the
// second signal reliable.
package xmldoc
