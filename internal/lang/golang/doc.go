// Package golang provides the Go language back-end: a grammar front-end built on
// go/parser and an interpreter backed by yaegi that keeps declarations,
// imports and bindings across units.
package golang
