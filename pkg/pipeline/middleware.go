package pipeline

import (
	"context"

	"github.com/aretw0/gokernel/pkg/domain"
)

// Continuation resumes command processing after a middleware.
type Continuation func(ctx context.Context, cmd domain.Command, pc *Context) error

// Middleware inspects or rewrites a command before passing it on.
// It may register invocations on pc, replace cmd, or stop the chain by not calling next.
type Middleware func(ctx context.Context, cmd domain.Command, pc *Context, next Continuation) error

// Chain composes middlewares so that the first one runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(ctx context.Context, cmd domain.Command, pc *Context, next Continuation) error {
		return build(middlewares, next)(ctx, cmd, pc)
	}
}

// Terminal is a continuation that does nothing.
func Terminal(context.Context, domain.Command, *Context) error { return nil }

func build(middlewares []Middleware, last Continuation) Continuation {
	cont := last
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw, next := middlewares[i], cont
		cont = func(ctx context.Context, cmd domain.Command, pc *Context) error {
			return mw(ctx, cmd, pc, next)
		}
	}
	return cont
}
