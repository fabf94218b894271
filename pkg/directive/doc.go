/*
Package directive implements magic commands: lines such as "%lsmagic" or
"%%writefile out.txt" that are handled by the kernel itself instead of the
language back-end.

A Registry maps tokens to Directives. The Router scans a submission line by
line, hands each directive line (and the text after it) to its handler, and
returns whatever text no directive claimed.
*/
package directive
