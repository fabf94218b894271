/*
Package observability carries kernel events to whoever is watching.

Each kernel owns one Channel. Publishers never block: every Subscription has
its own unbounded queue drained by a pump goroutine, so a slow renderer cannot
stall execution. On top of the channel the package offers ready-made
subscribers for structured logging and Prometheus metrics, and Forward to fan
several channels into one.
*/
package observability
