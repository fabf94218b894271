// Package lua provides the Lua language back-end: a grammar front-end built on
// the gopher-lua parser and an interpreter that keeps one LState per session.
package lua
