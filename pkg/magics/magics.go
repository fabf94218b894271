package magics

import (
	"context"
	"errors"

	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// Dispatcher runs a command through a kernel, publishing its events to publish.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command, publish func(domain.Event)) (pipeline.Result, error)
}

var errNoPipeline = errors.New("directive needs a pipeline to run")

// Register adds the built-in magics to reg. d executes code for %%time and
// listings feeds %lsmagic.
func Register(reg *directive.Registry, d Dispatcher, listings func() []Listing) error {
	for _, dir := range []directive.Directive{
		LsMagic(listings),
		HTML(),
		JavaScript(),
		Markdown(),
		Time(d),
		WriteFile("%%writefile"),
		WriteFile("%writefile"),
	} {
		if err := reg.Register(dir); err != nil {
			return err
		}
	}
	return nil
}

func schedule(req directive.Request, inv pipeline.Invocation) error {
	if req.Pipeline == nil {
		return errNoPipeline
	}
	return req.Pipeline.Register(inv)
}

// consumed ends routing for the rest of the cell.
func consumed(req directive.Request) domain.Submission {
	return req.Remaining.Derive("")
}
