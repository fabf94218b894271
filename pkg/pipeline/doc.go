/*
Package pipeline runs the work produced by one kernel command.

A command is first passed through a chain of Middleware (directive routing,
submission handling). Middleware registers Invocations on a Context; RunAll
then starts them concurrently and merges their events into one log, in the
order they were emitted. Each Invocation reports through its own
InvocationContext, which keeps a local record and forwards every event to the
kernel's channel as it happens.
*/
package pipeline
