package magics

import (
	"bytes"
	"context"
	"strings"

	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
)

// HTML displays the rest of the cell as text/html.
func HTML() directive.Directive {
	return directive.Directive{
		Name:        "%%html",
		Kind:        directive.KindCell,
		Description: "Render the cell as HTML.",
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			content := strings.TrimSpace(req.Remaining.Code)
			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(), domain.HTML(content)))
				return nil
			})
		},
	}
}

// JavaScript wraps the rest of the cell in a script element.
func JavaScript() directive.Directive {
	return directive.Directive{
		Name:        "%%javascript",
		Kind:        directive.KindCell,
		Description: "Run the cell as JavaScript in the front-end.",
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			script := `<script type="text/javascript">` + strings.TrimSpace(req.Remaining.Code) + `</script>`
			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(), domain.HTML(script)))
				return nil
			})
		},
	}
}

// Markdown renders the rest of the cell to HTML. The markdown source travels
// along as an alternate so terminals can render it themselves.
func Markdown() directive.Directive {
	md := goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID()))
	return directive.Directive{
		Name:        "%%markdown",
		Kind:        directive.KindCell,
		Description: "Render the cell as Markdown.",
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			source := strings.TrimSpace(req.Remaining.Code)
			var buf bytes.Buffer
			if err := md.Convert([]byte(source), &buf); err != nil {
				return req.Remaining, err
			}
			rendered := buf.String()
			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(),
					domain.HTML(rendered),
					domain.Markdown(source),
				))
				return nil
			})
		},
	}
}
