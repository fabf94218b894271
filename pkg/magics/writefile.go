package magics

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/gokernel/pkg/directive"
	"github.com/aretw0/gokernel/pkg/domain"
	"github.com/aretw0/gokernel/pkg/pipeline"
	"github.com/spf13/pflag"
)

// WriteFile saves the rest of the cell to a file, registered under token.
// With -a the text is appended on a new line.
func WriteFile(token string) directive.Directive {
	return directive.Directive{
		Name:        token,
		Kind:        directive.KindOf(token),
		Description: "Write the cell to a file. Use -a to append.",
		Flags: func() *pflag.FlagSet {
			fs := directive.NewFlagSet(token)
			fs.BoolP("append", "a", false, "append to the file instead of overwriting it")
			return fs
		},
		Handler: func(_ context.Context, req directive.Request) (domain.Submission, error) {
			if len(req.Args) != 1 {
				return req.Remaining, fmt.Errorf("usage: %s [-a] <path>", token)
			}
			path := req.Args[0]
			appendMode, _ := req.Flags.GetBool("append")
			text := req.Remaining.Code

			return consumed(req), schedule(req, func(ic *pipeline.InvocationContext) error {
				msg, err := writeText(path, text, appendMode)
				if err != nil {
					ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(),
						domain.PlainText(fmt.Sprintf("Could not write to file %s: %v", path, err))))
					return err
				}
				ic.Emit(domain.NewDisplayedValueProduced(ic.Submission(), domain.PlainText(msg)))
				return nil
			})
		},
	}
}

func writeText(path, text string, appendMode bool) (string, error) {
	if appendMode {
		existing, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := os.WriteFile(path, []byte(string(existing)+"\n"+text), 0o644); err != nil {
				return "", err
			}
			return "Appending text to file " + path, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", err
	}
	return "Overwriting text to file " + path, nil
}
