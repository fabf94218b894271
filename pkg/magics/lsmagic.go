package magics

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
)

// Listing is one kernel's set of directives as shown by %lsmagic.
type Listing struct {
	Kernel   string
	Registry *directive.Registry
}

var sections = []struct {
	title string
	kind  directive.Kind
}{
	{"Line magics", directive.KindLine},
	{"Cell magics", directive.KindCell},
}

// LsMagic emits one display per listing, in the order listings returns them.
func LsMagic(listings func() []Listing) directive.Directive {
	return directive.Directive{
		Name:        "%lsmagic",
		Kind:        directive.KindLine,
		Description: "List the available magic commands.",
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			return req.Remaining, schedule(req, func(ic *pipeline.InvocationContext) error {
				for _, l := range listings() {
					ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(),
						domain.HTML(RenderHTML(l)),
						domain.PlainText(RenderText(l)),
					))
				}
				return nil
			})
		},
	}
}

// RenderHTML formats a listing as an HTML fragment.
func RenderHTML(l Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<div class=\"lsmagic\">\n<h4>%s</h4>\n", html.EscapeString(l.Kernel))
	for _, s := range sections {
		directives := l.Registry.ByKind(s.kind)
		if len(directives) == 0 {
			continue
		}
		fmt.Fprintf(&b, "<p>%s</p>\n<ul>\n", s.title)
		for _, d := range directives {
			fmt.Fprintf(&b, "<li><code>%s</code>", html.EscapeString(d.Name))
			if d.Description != "" {
				fmt.Fprintf(&b, " %s", html.EscapeString(d.Description))
			}
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
	}
	b.WriteString("</div>\n")
	return b.String()
}

// RenderText formats a listing for terminals.
func RenderText(l Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", l.Kernel)
	for _, s := range sections {
		directives := l.Registry.ByKind(s.kind)
		if len(directives) == 0 {
			continue
		}
		names := make([]string, 0, len(directives))
		for _, d := range directives {
			names = append(names, d.Name)
		}
		fmt.Fprintf(&b, "  %s: %s\n", s.title, strings.Join(names, "  "))
	}
	return b.String()
}
