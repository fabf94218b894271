// Package magics provides the built-in directives every kernel understands:
// %lsmagic, %%html, %%javascript, %%markdown, %%time, %%writefile and the
// language switches used by composite kernels.
package magics
