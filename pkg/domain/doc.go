/*
Package domain contains the core domain models of the gokernel execution engine.

It defines the values that flow between the routing pipeline, the completion
detector and the execution engine. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - Submission: One immutable chunk of user text, correlated by ID and ParentID.
  - Command: A request sent to a kernel (SubmitCode, RequestDiagnostics).
  - Event: A lifecycle notification describing what happened to a submission.
  - Diagnostic: A front-end message with a severity and a source position.
  - SessionRecord: The persisted history of a session, replayed on resume.
*/
package domain
