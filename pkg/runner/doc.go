/*
Package runner implements the interactive read-submit-render loop of a kernel.

It acts as the bridge between a kernel and the outside world. The Runner reads
one line at a time through a pluggable IOHandler, submits it, and hands the
resulting events back to the handler for display. Ctrl-C cancels only the
execution in flight; at an idle prompt it ends the loop.

# Key Components

  - Runner: The loop. It owns the SignalManager for the duration of Run.
  - IOHandler: Decouples how lines are read and events are shown.
  - TextHandler: Prompts with "> " and "... " and prints values for humans.
  - JSONHandler: Reads requests and writes events as newline-delimited JSON.

# Usage

	r := runner.NewRunner(kernel,
		runner.WithInputHandler(runner.NewTextHandler(os.Stdout, runner.WithStdin())),
	)

	if err := r.Run(ctx); err != nil {
		log.Fatal(err)
	}
*/
package runner
