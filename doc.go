/*
Package gokernel is an interactive code-execution kernel.

A kernel accepts incremental text submissions, decides whether the buffered
text forms a complete unit, executes complete units against a persistent
interpreter state and publishes a time-ordered stream of lifecycle events
describing what happened to each submission.

Lines starting with a registered directive (a "magic" such as %%time or
%%writefile) are intercepted before the remaining code reaches the
interpreter.

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/gokernel"
		"github.com/aretw0/gokernel/pkg/domain"
	)

	func main() {
		k, err := gokernel.New("lua")
		if err != nil {
			log.Fatal(err)
		}
		defer k.Close()

		res, err := k.Send(context.Background(), domain.NewSubmitCode("1 + 1"))
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range res.Events {
			if v, ok := e.(domain.ValueProduced); ok {
				fmt.Println(v.Value.Value) // 2
			}
		}
	}

Several kernels can be hosted side by side with NewComposite; cells are then
routed to a language with %%go or %%lua.
*/
package gokernel
