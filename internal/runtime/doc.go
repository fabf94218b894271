// Package runtime holds the two stateful pieces of a kernel session: the
// Detector, which buffers lines until they form a complete unit, and the
// Engine, which executes units one at a time against persistent state.
package runtime
