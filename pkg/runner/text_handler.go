package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/gokernel/pkg/domain"
)

const (
	// Prompt is shown when the kernel is ready for a new unit.
	Prompt = "> "
	// ContinuationPrompt is shown while an incomplete unit is buffered.
	ContinuationPrompt = "... "
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	source   io.Reader
	Reader   *bufio.Reader
	Writer   io.Writer
	Renderer ContentRenderer
	prompts  bool
	maxInput int

	inputChan chan inputResult
	startOnce sync.Once
}

type inputResult struct {
	text string
	err  error
}

// TextHandlerOption defines configuration for TextHandler.
type TextHandlerOption func(*TextHandler)

// WithStdin reads lines from os.Stdin.
func WithStdin() TextHandlerOption {
	return WithInputReader(os.Stdin)
}

// WithInputReader reads lines from r.
func WithInputReader(r io.Reader) TextHandlerOption {
	return func(h *TextHandler) {
		h.source = r
	}
}

// WithTextHandlerRenderer configures the markdown renderer.
func WithTextHandlerRenderer(renderer ContentRenderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = renderer
	}
}

// WithPrompts toggles the "> " and "... " prompts. They are on by default.
func WithPrompts(enabled bool) TextHandlerOption {
	return func(h *TextHandler) {
		h.prompts = enabled
	}
}

// WithTextHandlerMaxInput overrides the input size limit.
func WithTextHandlerMaxInput(limit int) TextHandlerOption {
	return func(h *TextHandler) {
		h.maxInput = limit
	}
}

// NewTextHandler creates a handler for standard text IO.
// Without an input reader, lines are supplied through FeedInput.
func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer:  w,
		prompts: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.source != nil {
		h.Reader = bufio.NewReader(h.source)
	}
	return h
}

func (h *TextHandler) initPump() {
	h.startOnce.Do(func() {
		h.inputChan = make(chan inputResult)
		if h.Reader != nil {
			go h.pump()
		}
	})
}

// pump reads lines in the background so Input can honor ctx.
func (h *TextHandler) pump() {
	for {
		text, err := h.Reader.ReadString('\n')

		// If we got text (even with EOF), send it
		if text != "" {
			h.inputChan <- inputResult{text: text}
		}

		if err != nil {
			if err == io.EOF {
				close(h.inputChan)
				return
			}
			h.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// FeedInput injects a line as if it had been typed. It blocks until Input takes it.
func (h *TextHandler) FeedInput(text string, err error) {
	h.initPump()
	h.inputChan <- inputResult{text: text, err: err}
}

func (h *TextHandler) Input(ctx context.Context, continuation bool) (domain.Command, error) {
	h.initPump()

	for {
		// Only show prompt if context is not yet done
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			h.prompt(continuation)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-h.inputChan:
			if !ok {
				return nil, io.EOF
			}
			if res.err != nil {
				return nil, res.err
			}

			clean, err := SanitizeInputLimit(strings.TrimRight(res.text, "\r\n"), h.maxInput)
			if err != nil {
				fmt.Fprintf(h.Writer, "Error: %v. Please try again.\n", err)
				continue
			}
			return domain.NewSubmitCode(clean), nil
		}
	}
}

func (h *TextHandler) prompt(continuation bool) {
	if !h.prompts {
		return
	}
	if continuation {
		fmt.Fprint(h.Writer, ContinuationPrompt)
		return
	}
	fmt.Fprint(h.Writer, Prompt)
}

func (h *TextHandler) Output(ctx context.Context, events []domain.Event) error {
	for _, e := range events {
		switch ev := e.(type) {
		case domain.ValueProduced:
			h.println(ev.Value.Value)
		case domain.DisplayedValueProduced:
			h.display(ev)
		case domain.EvaluationFailed:
			h.println("Error: " + ev.Message)
		}
	}
	return nil
}

// display prefers markdown (when a renderer is set), then plain text, then raw HTML.
func (h *TextHandler) display(ev domain.DisplayedValueProduced) {
	if h.Renderer != nil {
		if md, ok := ev.Preferred(domain.MimeTextMarkdown); ok {
			if rendered, err := h.Renderer(md.Value); err == nil {
				h.println(strings.TrimSpace(rendered))
				return
			}
		}
	}
	if v, ok := ev.Preferred(domain.MimeTextPlain, domain.MimeTextMarkdown); ok {
		fmt.Fprint(h.Writer, v.Value)
		if !strings.HasSuffix(v.Value, "\n") {
			fmt.Fprintln(h.Writer)
		}
		return
	}
	h.println(ev.Value.Value)
}

func (h *TextHandler) println(s string) {
	fmt.Fprintln(h.Writer, strings.TrimRight(s, "\n"))
}

func (h *TextHandler) SystemOutput(ctx context.Context, msg string) error {
	fmt.Fprintf(h.Writer, "\n[System] %s\n", msg)
	return nil
}
