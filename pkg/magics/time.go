package magics

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// Time runs the rest of the cell as a child submission and reports how long it took.
func Time(d Dispatcher) directive.Directive {
	return directive.Directive{
		Name:        "%%time",
		Kind:        directive.KindCell,
		Description: "Time the execution of the cell.",
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			code := req.Remaining.Code
			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				child := domain.SubmitCode{Sub: ic.Submission().Child(code)}

				start := time.Now()
				res, err := d.Dispatch(ic.Context(), child, ic.Emit)
				elapsed := time.Since(start)

				ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(),
					domain.PlainText(fmt.Sprintf("Wall time: %dms", elapsed.Milliseconds()))))
				if err != nil {
					return err
				}
				return res.Err()
			})
		},
	}
}

// Switch routes the rest of the cell to the kernel registered for language.
func Switch(language string, d Dispatcher) directive.Directive {
	return directive.Directive{
		Name:        "%%" + language,
		Kind:        directive.KindCell,
		Description: fmt.Sprintf("Run the cell with the %s kernel.", language),
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			code := req.Remaining.Code
			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				res, err := d.Dispatch(ic.Context(), domain.SubmitCode{Sub: ic.Submission().Derive(code)}, ic.Emit)
				if err != nil {
					return err
				}
				return res.Err()
			})
		},
	}
}
