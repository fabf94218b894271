/*
Package ports defines the driven ports (interfaces) for the gokernel engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various language back-ends and storage backends.

# Key Interfaces

  - FrontEnd: Grammar service of a language (completeness, diagnostics, trailing value).
  - Interpreter: Owns the persistent execution state of a language back-end.
  - HistoryStore: Responsible for persisting and loading session history.
  - SessionLocker: Leases one session at a time to a writer, across processes.
*/
package ports
